package timeout

import "errors"

var (
	// ErrTimeout is returned when the work misses its deadline
	ErrTimeout = errors.New("execution timed out")

	// ErrCircuitOpen is returned when the operation's breaker blocks the call
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrFallbackExhausted is returned when no fallback provider handled the failure
	ErrFallbackExhausted = errors.New("all fallback providers exhausted")
)
