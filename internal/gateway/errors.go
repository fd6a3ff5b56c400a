package gateway

import (
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidPixKey        ErrorCode = "INVALID_PIX_KEY"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeTransactionNotFound  ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeGatewayUnavailable   ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodeUnknown              ErrorCode = "UNKNOWN_ERROR"
)

// Error is the canonical gateway failure. Provider is the adapter name, Code
// the taxonomy value, Message whatever detail the provider returned.
type Error struct {
	Provider string
	Code     ErrorCode
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(provider string, code ErrorCode, message string) *Error {
	return &Error{Provider: provider, Code: code, Message: message}
}

func NewInvalidRequestError(provider, message string) *Error {
	return NewError(provider, ErrCodeInvalidRequest, message)
}

// ErrorFromHTTPStatus maps a provider HTTP response status to the canonical
// taxonomy. The PIX key special case applies when a 400/422 body mentions the
// key, since providers report bad destination keys as plain validation errors.
func ErrorFromHTTPStatus(provider string, status int, body string) *Error {
	switch {
	case status == 401 || status == 403:
		return NewError(provider, ErrCodeAuthenticationFailed, body)
	case status == 404:
		return NewError(provider, ErrCodeTransactionNotFound, body)
	case status == 429:
		return NewError(provider, ErrCodeRateLimitExceeded, body)
	case status == 400 || status == 422:
		if strings.Contains(strings.ToLower(body), "pix key") || strings.Contains(strings.ToLower(body), "pix_key") {
			return NewError(provider, ErrCodeInvalidPixKey, body)
		}
		return NewError(provider, ErrCodeInvalidRequest, body)
	case status >= 500:
		return NewError(provider, ErrCodeGatewayUnavailable, body)
	default:
		return NewError(provider, ErrCodeUnknown, fmt.Sprintf("unexpected status %d: %s", status, body))
	}
}

func IsGatewayError(err error) (*Error, bool) {
	if gwErr, ok := err.(*Error); ok {
		return gwErr, true
	}
	return nil, false
}
