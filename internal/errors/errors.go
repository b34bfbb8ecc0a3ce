package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeTransient        ErrCode = "TRANSIENT"
	ErrCodeNonTransient     ErrCode = "NON_TRANSIENT"
	ErrCodeRateLimited      ErrCode = "RATE_LIMITED"
	ErrCodeAggregationInput ErrCode = "AGGREGATION_INPUT"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a retryable API error (network failure or 5xx)
func NewTransientError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeTransient,
		Message: message,
		Err:     err,
	}
}

// NewNonTransientError creates a non-retryable API error (4xx other than rate limit)
func NewNonTransientError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeNonTransient,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
	}
}

// NewAggregationInputError creates an error for a malformed record
func NewAggregationInputError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeAggregationInput,
		Message: message,
	}
}

// ClassifyAPIError wraps an API call failure with the code matching the
// HTTP status. statusCode may be 0 when no response was received, which
// counts as transient (network failure).
func ClassifyAPIError(statusCode int, message string, err error) *AppError {
	switch {
	case statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests:
		return NewRateLimitedError(message)
	case statusCode >= 400 && statusCode < 500:
		return NewNonTransientError(message, err)
	default:
		return NewTransientError(message, err)
	}
}

// IsTransient checks if the error should be retried with backoff
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeRateLimited
	}
	return false
}
