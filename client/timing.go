package client

import (
	"math"
	"time"
)

// Poll timing defaults.
const (
	defaultRetrySeconds   = 5.0
	defaultBackoffFactor  = 2.5
	maxRetryInterval      = 20.0
	defaultPollTimeout    = 3600 * time.Second
	unknownCountInterval  = 15.0
	entitiesPerSecondHint = 300
)

// completionWeights weight the sliding window of completion samples,
// oldest first; each successive sample counts 1.5x the previous.
var completionWeights = []float64{1, 1.5, 2.25, 3.375, 5.0625}

// pollTimer computes poll intervals for batch job status checks. The
// initial interval is estimated from the entity count, then refined
// across sequential jobs by a weighted average over recent completion
// times, which amortizes polling overhead across many chunks in one
// run.
type pollTimer struct {
	retrySeconds  float64
	backoffFactor float64
	timeout       time.Duration

	samples     []float64 // seconds, oldest first, at most 5
	nextInitial float64   // seconds; 0 until a completion is recorded
}

func newPollTimer() *pollTimer {
	return &pollTimer{
		retrySeconds:  defaultRetrySeconds,
		backoffFactor: defaultBackoffFactor,
		timeout:       defaultPollTimeout,
	}
}

// initialInterval returns the first sleep for a job with the given
// entity count (non-positive when unknown).
func (t *pollTimer) initialInterval(entityCount int) time.Duration {
	if t.nextInitial > 0 {
		return secondsToDuration(t.nextInitial)
	}
	if entityCount <= 0 {
		return secondsToDuration(unknownCountInterval)
	}
	seconds := math.Ceil(float64(entityCount) / entitiesPerSecondHint)
	if seconds < defaultRetrySeconds {
		seconds = defaultRetrySeconds
	}
	return secondsToDuration(seconds)
}

// retryInterval returns the sleep before the next status check after
// pollCount non-terminal checks, bounded so retries never back off
// beyond the cap.
func (t *pollTimer) retryInterval(pollCount int) time.Duration {
	seconds := t.retrySeconds + float64(pollCount)*t.backoffFactor
	if seconds > maxRetryInterval {
		seconds = maxRetryInterval
	}
	return secondsToDuration(seconds)
}

// recordCompletion folds a job's total poll time into the sliding
// window and precomputes the next job's initial interval. A job that
// completed on its very first poll pulls the estimate down further.
func (t *pollTimer) recordCompletion(elapsed time.Duration, firstPoll bool) {
	t.samples = append(t.samples, 0.7*elapsed.Seconds())
	if len(t.samples) > len(completionWeights) {
		t.samples = t.samples[len(t.samples)-len(completionWeights):]
	}

	var weighted, total float64
	for i, sample := range t.samples {
		weighted += sample * completionWeights[i]
		total += completionWeights[i]
	}
	next := weighted / total
	if firstPoll {
		next *= 0.85
	}
	t.nextInitial = next
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
