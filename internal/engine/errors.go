package engine

import (
	"errors"
	"fmt"
)

// ErrSessionRequired rejects requests without a session id
var ErrSessionRequired = errors.New("session id is required")

// Strict-mode violation kinds
const (
	ViolationLowConfidence = "low_confidence"
	ViolationFactCheck     = "fact_check_failed"
)

// StrictModeError aborts a request when strict mode is on and a reliability
// threshold is violated. The offending response is recorded in history
// before the error is returned.
type StrictModeError struct {
	RequestID string
	Violation string // ViolationLowConfidence or ViolationFactCheck
	Detail    string
}

func (e *StrictModeError) Error() string {
	return fmt.Sprintf("strict mode: %s (%s) for request %s", e.Violation, e.Detail, e.RequestID)
}

// IsStrictModeError reports whether err is a strict-mode violation
func IsStrictModeError(err error) bool {
	var sme *StrictModeError
	return errors.As(err, &sme)
}
