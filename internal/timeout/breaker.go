package timeout

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state machine position
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// breaker tracks the health of one operation name.
// closed -> (failures >= threshold) -> open -> (cooldown elapsed) -> half-open
// -> trial success -> closed | trial failure -> open
type breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	trialing  bool // A half-open trial is in flight
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		state:     StateClosed,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// allow reports whether a call may proceed. The second return is true when
// the call is the single half-open trial.
func (b *breaker) allow() (proceed bool, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			b.trialing = true
			return true, true
		}
		return false, false
	case StateHalfOpen:
		if b.trialing {
			// Another trial is already deciding the breaker's fate
			return false, false
		}
		b.trialing = true
		return true, true
	}
	return false, false
}

// recordSuccess leans the breaker toward closed
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.failures = 0
		b.trialing = false
		return
	}
	if b.failures > 0 {
		b.failures--
	}
}

// abandonTrial releases a half-open trial that ended without a verdict,
// such as the caller cancelling mid-flight
func (b *breaker) abandonTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.trialing = false
	}
}

// recordFailure counts a failure and opens the breaker past the threshold.
// Returns true if this failure opened the breaker.
func (b *breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.trialing = false
		return true
	}

	b.failures++
	if b.state == StateClosed && b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		return true
	}
	return false
}

// snapshot returns the current state without mutating it
func (b *breaker) snapshot() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:    b.state,
		Failures: b.failures,
		OpenedAt: b.openedAt,
	}
}

// BreakerStats is the externally visible view of one breaker
type BreakerStats struct {
	State    BreakerState `json:"state"`
	Failures int          `json:"failures"`
	OpenedAt time.Time    `json:"opened_at,omitempty"`
}
