package batch

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100)

	tracker.Start()
	assert.True(t, tracker.started, "should be started")

	tracker.ChunkSubmitted(40)
	tracker.ChunkSubmitted(60)

	elapsed := tracker.Elapsed()
	assert.Greater(t, elapsed, time.Duration(0), "elapsed time should be positive")

	output := buf.String()
	assert.Contains(t, output, "100/100", "should show completion")
	assert.Contains(t, output, "100.0%", "should show 100%")
	assert.Contains(t, output, "2 chunks", "should count chunks")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 200)

	tracker.Start()
	tracker.ChunkSubmitted(50)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "50/200", "finish should report current counts")
	assert.Contains(t, output, "25.0%", "finish should show percentage")
	assert.Contains(t, output, "\n", "finish should print newline")
}

func TestProgressTracker_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0)

	tracker.Start()
	tracker.ChunkSubmitted(75)

	output := buf.String()
	assert.Contains(t, output, "75 entities in 1 chunks", "should omit percentage for unknown total")
	assert.NotContains(t, output, "%)", "should not show percentage for unknown total")
}

func TestProgressTracker_Rate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100)

	tracker.Start()
	time.Sleep(10 * time.Millisecond)
	tracker.ChunkSubmitted(100)

	output := buf.String()
	assert.Contains(t, output, "entities/s", "should show rate")
}

func TestProgressTracker_ZeroElapsed(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100)

	tracker.Start()
	tracker.startTime = time.Now().Add(time.Minute)
	tracker.ChunkSubmitted(50)

	output := buf.String()
	assert.NotContains(t, output, "Inf", "zero elapsed should not produce an infinite rate")
	assert.Contains(t, output, "0.0 entities/s", "zero elapsed should report a zero rate")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100)

	// Should not panic when not started
	tracker.ChunkSubmitted(10)
	tracker.Finish()
	assert.Equal(t, time.Duration(0), tracker.Elapsed())

	output := buf.String()
	assert.Equal(t, "", output, "should have no output when not started")
}
