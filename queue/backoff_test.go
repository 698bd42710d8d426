package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffTable(t *testing.T) {
	want := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
		360 * time.Minute,
		1440 * time.Minute,
	}
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, want[attempt-1], Backoff(attempt), "attempt %d", attempt)
	}
}

func TestBackoffMonotonicAndClamped(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		delay := Backoff(attempt)
		assert.GreaterOrEqual(t, delay, prev, "attempt %d", attempt)
		prev = delay
	}
	assert.Equal(t, 1440*time.Minute, Backoff(6))
	assert.Equal(t, 1440*time.Minute, Backoff(100))
	assert.Equal(t, 1*time.Minute, Backoff(0))
}
