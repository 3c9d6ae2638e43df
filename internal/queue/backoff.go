package queue

import (
	"math"
	"time"
)

const maxBackoff = 10 * time.Minute

// Backoff returns the exponential retry delay before the next delivery.
// attempt is the number of deliveries already made (>= 1 on the first
// retry), so the delays run base, 2*base, 4*base, ... capped at ten
// minutes.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
