// Package retry converts per-attempt fetch outcomes into a retry decision:
// retry-after(d) or give-up. Backoff is exponential with full jitter,
// generalized from the fixed-delay retry loop in
// services/tile_download_service.py's download_tile.
package retry

import (
	"math/rand"
	"time"
)

// Policy is an exponential-backoff-with-full-jitter retry policy, capped at
// maxBackoff. Attempt numbers are 1-based. A Policy has no mutable state
// and is safe for concurrent use by many workers at once.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	MaxBackoff  time.Duration
}

// New builds a Policy. maxAttempts is the total number of attempts allowed
// for one (source, tile) pair, including the first.
func New(maxAttempts int, base, maxBackoff time.Duration) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		Base:        base,
		MaxBackoff:  maxBackoff,
	}
}

// Decision is the outcome of consulting the policy after a failed attempt.
type Decision struct {
	ShouldRetry bool
	Delay       time.Duration
}

// Next decides whether attempt number `attempt` (the one that just failed)
// may be followed by another attempt, and if so, after what delay.
func (p *Policy) Next(attempt int) Decision {
	if attempt >= p.MaxAttempts {
		return Decision{ShouldRetry: false}
	}
	backoff := p.Base * time.Duration(1<<uint(attempt-1))
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	jittered := time.Duration(rand.Int63n(int64(backoff) + 1))
	return Decision{ShouldRetry: true, Delay: jittered}
}
