package recorder

import (
	"errors"
	"fmt"
)

// LifecycleErrorCode categorizes lifecycle errors.
type LifecycleErrorCode string

const (
	// ErrCodeInvalidState indicates an operation that conflicts with how
	// the session was constructed.
	ErrCodeInvalidState LifecycleErrorCode = "INVALID_STATE"

	// ErrCodeHalted indicates an operation on a destroyed session.
	ErrCodeHalted LifecycleErrorCode = "HALTED"
)

// LifecycleError is returned by operations the session's state rejects.
type LifecycleError struct {
	Code    LifecycleErrorCode
	Op      string
	Message string
}

func (e *LifecycleError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsHalted reports whether err is a HALTED lifecycle error.
func IsHalted(err error) bool {
	var le *LifecycleError
	return errors.As(err, &le) && le.Code == ErrCodeHalted
}

// IsInvalidState reports whether err is an INVALID_STATE lifecycle error.
func IsInvalidState(err error) bool {
	var le *LifecycleError
	return errors.As(err, &le) && le.Code == ErrCodeInvalidState
}

func errHalted(op string) *LifecycleError {
	return &LifecycleError{Code: ErrCodeHalted, Op: op, Message: "session destroyed"}
}

func errInvalidState(op, msg string) *LifecycleError {
	return &LifecycleError{Code: ErrCodeInvalidState, Op: op, Message: msg}
}
