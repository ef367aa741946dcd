// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
	"time"
)

// Common engine errors
var (
	ErrBrowserNotFound = errors.New("chrome browser not found")
	ErrPoolExhausted   = errors.New("no browsers available in pool")
	ErrRunAborted      = errors.New("scrape run aborted")
	ErrNoProducts      = errors.New("no product links found")
	ErrInvalidCategory = errors.New("invalid category path")
	ErrEmptyRecord     = errors.New("extraction returned no record")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeLaunchFailure  ErrorCode = "LAUNCH_FAILURE"
	ErrCodePoolExhausted  ErrorCode = "POOL_EXHAUSTED"
	ErrCodeItemFailure    ErrorCode = "ITEM_FAILURE"
	ErrCodeRunAbort       ErrorCode = "RUN_ABORT"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"
	ErrCodeValidation     ErrorCode = "VALIDATION"
	ErrCodeBrowserCrash   ErrorCode = "BROWSER_CRASH"
	ErrCodePersistFailure ErrorCode = "PERSIST_FAILURE"
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// PoolExhaustedError is returned by Acquire when no browser frees up within the bounded wait.
// It is the pool's backpressure signal and is never retried by the pool itself.
type PoolExhaustedError struct {
	Waited      time.Duration
	MaxCapacity int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("%v (waited %s, max capacity %d); please try again later",
		ErrPoolExhausted, e.Waited.Round(time.Millisecond), e.MaxCapacity)
}

// Unwrap lets errors.Is match ErrPoolExhausted
func (e *PoolExhaustedError) Unwrap() error {
	return ErrPoolExhausted
}

// Is matches an *EngineError carrying ErrCodePoolExhausted
func (e *PoolExhaustedError) Is(target error) bool {
	return hasCode(target, ErrCodePoolExhausted)
}

// RunAbortError reports a precondition failure that stopped a run before any batch started
type RunAbortError struct {
	Reason string
	Err    error
}

func (e *RunAbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrRunAborted, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrRunAborted, e.Reason)
}

// Unwrap returns both the abort sentinel and the cause so either can be matched
func (e *RunAbortError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRunAborted, e.Err}
	}
	return []error{ErrRunAborted}
}

// Is matches an *EngineError carrying ErrCodeRunAbort
func (e *RunAbortError) Is(target error) bool {
	return hasCode(target, ErrCodeRunAbort)
}

func hasCode(target error, code ErrorCode) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == code
}

// NewRunAbortError creates a RunAbortError
func NewRunAbortError(reason string, err error) *RunAbortError {
	return &RunAbortError{Reason: reason, Err: err}
}

// IsRetryable reports whether err was explicitly marked retryable
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retry
	}
	return false
}
