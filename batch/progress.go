package batch

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker tracks and reports progress of a batch submission.
type ProgressTracker struct {
	writer    io.Writer
	total     int
	submitted int
	chunks    int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of entities to submit, 0 when unknown
func NewProgressTracker(writer io.Writer, total int) *ProgressTracker {
	return &ProgressTracker{
		writer: writer,
		total:  total,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.submitted = 0
	p.chunks = 0
}

// ChunkSubmitted records one submitted chunk of the given entity count.
func (p *ProgressTracker) ChunkSubmitted(entities int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.submitted += entities
	p.chunks++
	p.report()
}

// Finish prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		rate = float64(p.submitted) / elapsed
	}

	if p.total > 0 {
		percentage := float64(p.submitted) / float64(p.total) * 100.0
		fmt.Fprintf(p.writer, "\rSubmitted: %d/%d (%.1f%%) in %d chunks - %.1f entities/s",
			p.submitted, p.total, percentage, p.chunks, rate)
		return
	}
	fmt.Fprintf(p.writer, "\rSubmitted: %d entities in %d chunks - %.1f entities/s",
		p.submitted, p.chunks, rate)
}
