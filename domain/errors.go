package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so every transport maps it the same way.
type ErrorCode string

const (
	ErrCodeNetworkUnreachable   ErrorCode = "NETWORK_UNREACHABLE"
	ErrCodeTimeout              ErrorCode = "TIMEOUT"
	ErrCodeDownstreamNonSuccess ErrorCode = "DOWNSTREAM_NON_SUCCESS"
	ErrCodeMalformedResponse    ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeInvalid              ErrorCode = "INVALID"
	ErrCodeInternal             ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrUnknownCommand = NewError(ErrCodeInvalid, "unknown admin command")
	ErrNotConfigured  = NewError(ErrCodeInternal, "component not configured")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf returns the classification of err, INTERNAL when it carries none.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeInternal
}

// IsDownstreamFailure reports whether err came from talking to the downstream service.
func IsDownstreamFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNetworkUnreachable, ErrCodeTimeout, ErrCodeDownstreamNonSuccess, ErrCodeMalformedResponse:
		return true
	default:
		return false
	}
}
