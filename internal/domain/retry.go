package domain

import "time"

// RetryPolicy bounds the in-round attempts of a single task
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns three attempts two seconds apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  1,
	}
}

// Attempts returns the attempt budget, never less than one
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the pause after the given failed attempt (1-based).
// A multiplier of 1 or less gives a fixed delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay)
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			delay *= p.Multiplier
			if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
				return p.MaxDelay
			}
		}
	}
	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
