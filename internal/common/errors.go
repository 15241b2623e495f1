// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Store errors.
	ErrNotFound         = errors.New("not found")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("document store unavailable")

	// Oracle errors.
	ErrOracleResponse = errors.New("malformed oracle response")
	ErrOracleEmpty    = errors.New("oracle returned no content")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// MissingConfig reports a required setting that was not provided.
func MissingConfig(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingConfig, key)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
