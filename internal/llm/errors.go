package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Error code constants for standardized error handling.
const (
	ErrCodeAuthentication = "authentication_error"
	ErrCodeRateLimit      = "rate_limit_exceeded"
	ErrCodeModelNotFound  = "model_not_found"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidOutput  = "invalid_output"
	ErrCodeServerError    = "server_error"
	ErrCodeTimeout        = "timeout"
)

// ProviderError is a classified failure of the completion API.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return "llm: " + e.Message + ": " + e.Err.Error()
	}
	return "llm: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Code returns the ProviderError code of err, or "" if err is not one.
func Code(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsRetryable reports whether the error is transient and the call may succeed on retry.
func IsRetryable(err error) bool {
	switch Code(err) {
	case ErrCodeRateLimit, ErrCodeServerError, ErrCodeTimeout:
		return true
	}
	return false
}

// mapError translates go-openai and network errors into ProviderError values.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{Code: ErrCodeTimeout, Message: "request timed out or cancelled", Err: err}
	}

	status, msg := 0, ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, msg = reqErr.HTTPStatusCode, reqErr.HTTPStatus
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Code: ErrCodeAuthentication, Message: msg, Err: err}
	case status == http.StatusTooManyRequests:
		return &ProviderError{Code: ErrCodeRateLimit, Message: msg, Err: err}
	case status == http.StatusNotFound && strings.Contains(strings.ToLower(msg), "model"):
		return &ProviderError{Code: ErrCodeModelNotFound, Message: msg, Err: err}
	case status >= 500:
		return &ProviderError{Code: ErrCodeServerError, Message: msg, Err: err}
	case status >= 400:
		return &ProviderError{Code: ErrCodeInvalidRequest, Message: msg, Err: err}
	}

	return &ProviderError{Code: ErrCodeServerError, Message: "completion request failed", Err: err}
}
