package embedder

import (
	"errors"
	"fmt"
)

// Common embedding client errors
var (
	// ErrThrottled indicates the backend rate limit was exceeded
	ErrThrottled = errors.New("embedding backend rate limit exceeded")

	// ErrEmptyResponse indicates the backend returned no embeddings
	ErrEmptyResponse = errors.New("the embedding backend returned an empty response")

	// ErrInvalidProvider indicates an unknown provider was configured
	ErrInvalidProvider = errors.New("invalid embedding provider specified")
)

// ThrottleError is returned when the retry budget for rate-limit signals is
// exhausted. Individual throttling responses are absorbed by backoff and
// never surface on their own.
type ThrottleError struct {
	Message  string
	Attempts int
	Err      error
}

func (e *ThrottleError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("rate limited by embedding backend after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ThrottleError) Unwrap() error { return e.Err }

// Is implements errors.Is support for ThrottleError.
func (e *ThrottleError) Is(target error) bool {
	if target == ErrThrottled {
		return true
	}
	_, ok := target.(*ThrottleError)
	return ok
}

// NewThrottleError creates a throttle error wrapping the last backend error.
func NewThrottleError(attempts int, err error) *ThrottleError {
	return &ThrottleError{Attempts: attempts, Err: err}
}

// ConfigError is returned for misconfiguration the backend rejects outright,
// such as an unknown model identifier. It is never retried. Remediation
// carries actionable guidance for operators.
type ConfigError struct {
	Message     string
	Remediation string
	Err         error
}

func (e *ConfigError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Remediation)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is implements errors.Is support for ConfigError.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// NewConfigError creates a configuration error with remediation guidance.
func NewConfigError(message, remediation string, err error) *ConfigError {
	return &ConfigError{Message: message, Remediation: remediation, Err: err}
}

// AccessDeniedError is returned when the backend rejects the caller's
// credentials or permissions. It is never retried.
type AccessDeniedError struct {
	Message     string
	Remediation string
	Err         error
}

func (e *AccessDeniedError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Remediation)
	}
	return e.Message
}

func (e *AccessDeniedError) Unwrap() error { return e.Err }

// Is implements errors.Is support for AccessDeniedError.
func (e *AccessDeniedError) Is(target error) bool {
	_, ok := target.(*AccessDeniedError)
	return ok
}

// NewAccessDeniedError creates an access denied error with remediation guidance.
func NewAccessDeniedError(message, remediation string, err error) *AccessDeniedError {
	return &AccessDeniedError{Message: message, Remediation: remediation, Err: err}
}

// TransientError is returned when the short fixed-delay retry budget for
// transient faults (timeouts, connection resets) is exhausted.
type TransientError struct {
	Message  string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("embedding backend failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is implements errors.Is support for TransientError.
func (e *TransientError) Is(target error) bool {
	_, ok := target.(*TransientError)
	return ok
}

// NewTransientError creates a transient error wrapping the last backend error.
func NewTransientError(attempts int, err error) *TransientError {
	return &TransientError{Attempts: attempts, Err: err}
}

// FailoverError is returned when both the primary and the backup provider
// failed for the same request. It carries both underlying errors.
type FailoverError struct {
	PrimaryName string
	BackupName  string
	PrimaryErr  error
	BackupErr   error
}

func (e *FailoverError) Error() string {
	return fmt.Sprintf("all embedding providers failed. primary (%s): %v; backup (%s): %v",
		e.PrimaryName, e.PrimaryErr, e.BackupName, e.BackupErr)
}

// Unwrap exposes both underlying errors to errors.Is and errors.As.
func (e *FailoverError) Unwrap() []error {
	return []error{e.PrimaryErr, e.BackupErr}
}

// Is implements errors.Is support for FailoverError.
func (e *FailoverError) Is(target error) bool {
	_, ok := target.(*FailoverError)
	return ok
}

// NewFailoverError creates an aggregate error naming both providers.
func NewFailoverError(primaryName, backupName string, primaryErr, backupErr error) *FailoverError {
	return &FailoverError{
		PrimaryName: primaryName,
		BackupName:  backupName,
		PrimaryErr:  primaryErr,
		BackupErr:   backupErr,
	}
}
