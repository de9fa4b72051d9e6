package retry

import (
	"time"
)

// Policy computes the delay to wait before reattempting a failed connection.
// It is a pure value: it holds no state, and callers are responsible for
// counting attempts and giving up once the attempt budget is exhausted.
type Policy struct {
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// Multiplier is the exponential growth factor applied per attempt.
	Multiplier float64

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// MaxAttempts is the total attempt budget, including the first attempt.
	MaxAttempts int
}

// DefaultPolicy matches the backoff used for remote publish connections:
// 1s, 2s, 4s, 8s, then give up.
var DefaultPolicy = Policy{
	BaseDelay:   1 * time.Second,
	Multiplier:  2,
	MaxDelay:    16 * time.Second,
	MaxAttempts: 4,
}

// Delay returns how long to wait after the given attempt (1-based) before
// trying again. It does not check the attempt budget.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted returns whether the given attempt (1-based) is past the budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}
