package exitcodes

import "errors"

// Exit codes for the empty-sweep runner
// These codes form the operational contract with CI/CD and operators
const (
	Success         = 0 // Build and sweep completed
	InvalidConfig   = 2 // Configuration file or flags invalid
	SafetyViolation = 3 // Sweep root refused by the safety validator
	RuntimeError    = 4 // Build command or sweep failed
)

// Error carries the exit code a failure should terminate the process with
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches code to err. A nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Code returns the exit code for err: Success for nil, the attached code
// when err was wrapped, RuntimeError otherwise
func Code(err error) int {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RuntimeError
}
