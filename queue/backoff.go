package queue

import "time"

// MaxAttempts is the retry ceiling; a delivery that fails this many times
// becomes terminally failed.
const MaxAttempts = 5

// retrySchedule maps attempt number to delay: 1m, 5m, 30m, 6h, 24h.
var retrySchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	360 * time.Minute,
	1440 * time.Minute,
}

// Backoff returns the delay before the next retry after the given attempt.
// Attempt 1 waits one minute; attempts past the table clamp to the last
// entry, so delays never decrease.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(retrySchedule) {
		attempt = len(retrySchedule)
	}
	return retrySchedule[attempt-1]
}
