package loader

import "time"

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 8 * time.Second
)

// CalculateBackoff returns base * 2^retry, capped at max.
// A negative retry count returns base.
func CalculateBackoff(retry int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBaseDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	if retry < 0 {
		return base
	}
	// 2^30 * base already exceeds any sane cap
	if retry > 30 {
		return max
	}

	d := base * time.Duration(1<<retry)
	if d > max || d <= 0 {
		return max
	}
	return d
}
