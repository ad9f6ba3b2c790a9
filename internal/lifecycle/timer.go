package lifecycle

import "time"

// DefaultThreshold is how long a donation stays in transit before the next
// read completes it.
const DefaultThreshold = 90 * time.Second

// IsOverdue reports whether strictly more than threshold has passed since
// the active in-transit event was recorded.
func IsOverdue(activeAt, now time.Time, threshold time.Duration) bool {
	return now.Sub(activeAt) > threshold
}

// remaining is the time left before a delivery becomes overdue, never negative.
func remaining(activeAt, now time.Time, threshold time.Duration) time.Duration {
	left := threshold - now.Sub(activeAt)
	if left < 0 {
		return 0
	}
	return left
}
