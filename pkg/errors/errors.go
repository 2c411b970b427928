package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest           ErrorCode = "BAD_REQUEST"
	ErrCodeInternalError        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation           ErrorCode = "VALIDATION_FAILED"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeContentRejected      ErrorCode = "CONTENT_REJECTED"
	ErrCodeTransportUnavailable ErrorCode = "TRANSPORT_UNAVAILABLE"
	ErrCodeAuthFailed           ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeRecipientRejected    ErrorCode = "RECIPIENT_REJECTED"
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error

	// RetryAfter is set for RATE_LIMIT_EXCEEDED errors.
	RetryAfter time.Duration
	// Details carries field level information, only shown in development.
	Details []string
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

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation creates a VALIDATION_FAILED error with optional details
func Validation(message string, details ...string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: details,
	}
}

// RateLimited creates a RATE_LIMIT_EXCEEDED error carrying the retry hint
func RateLimited(message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// CodeOf returns the code of the first AppError in the chain, or ErrCodeInternalError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// As returns the first AppError in the chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func hasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsNotFound checks if error is NotFound
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsUnauthorized checks if error is Unauthorized
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsValidation checks if error is a validation failure
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsRateLimited checks if error is a rate limit rejection
func IsRateLimited(err error) bool { return hasCode(err, ErrCodeRateLimited) }

// IsContentRejected checks if error is a content rejection
func IsContentRejected(err error) bool { return hasCode(err, ErrCodeContentRejected) }

// IsRecipientRejected checks if error is a permanent remote rejection
func IsRecipientRejected(err error) bool { return hasCode(err, ErrCodeRecipientRejected) }

// HTTPStatus maps an error code to the HTTP status returned to clients
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeContentRejected, ErrCodeRecipientRejected:
		return http.StatusBadRequest
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTransportUnavailable, ErrCodeAuthFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
