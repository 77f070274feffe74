package pryv

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy. Every failure surfaced by this module wraps one of these
// sentinels so callers can branch with errors.Is.
var (
	ErrMalformedEndpoint    = errors.New("malformed API endpoint")
	ErrTransport            = errors.New("transport error")
	ErrMissingMeta          = errors.New("response is missing meta.serverTime")
	ErrInvalidServiceInfo   = errors.New("invalid service info")
	ErrLogin                = errors.New("login failed")
	ErrInvalidLoginResponse = errors.New("invalid login response: no token and no error")
)

// Common static errors that can be wrapped with context.
var (
	ErrInvalidChunkSize    = errors.New("chunk size must be greater than zero")
	ErrResultCountMismatch = errors.New("batch result count does not match call count")
	ErrNoServiceInfoSource = errors.New("service needs a service info URL or customizations")
	ErrConfigRequired      = errors.New("config is required")
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
	ErrCircuitBreakerOpen  = errors.New("circuit breaker is open")
)

// APIError is the structured error body returned by the platform:
//
//	{"error": {"id": "invalid-credentials", "message": "..."}}
type APIError struct {
	ID      string      `json:"id,omitempty"        yaml:"id,omitempty"`
	Message string      `json:"message"             yaml:"message"`
	Data    interface{} `json:"data,omitempty"      yaml:"data,omitempty"`
	SubErrs []APIError  `json:"subErrors,omitempty" yaml:"subErrors,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.ID == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.ID, e.Message)
}

// ResponseError wraps the error envelope of a platform response.
type ResponseError struct {
	Err *APIError `json:"error"`
}

// ParseResponseError extracts a structured platform error from a response body.
// It returns nil when the body carries no "error" object with a message.
func ParseResponseError(data []byte) *APIError {
	if len(data) == 0 {
		return nil
	}

	var envelope ResponseError

	err := json.Unmarshal(data, &envelope)
	if err != nil || envelope.Err == nil || envelope.Err.Message == "" {
		return nil
	}

	return envelope.Err
}

// TransportError reports a failed HTTP exchange. StatusCode is zero when no
// response was received.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// Is reports ErrTransport so wrapped transport errors match the sentinel.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Unwrap returns the underlying cause, an *APIError when the platform sent one.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError returns the structured platform error carried by the response, if any.
func (e *TransportError) APIError() *APIError {
	apiErr := &APIError{}
	if errors.As(e.Err, &apiErr) {
		return apiErr
	}

	return nil
}

// LoginError carries the message of a structured login failure verbatim.
type LoginError struct {
	Message string
	Cause   *APIError
}

// Error implements the error interface.
func (e *LoginError) Error() string {
	return e.Message
}

// Is reports ErrLogin so callers can match any login failure.
func (e *LoginError) Is(target error) bool {
	return target == ErrLogin
}

// IsTransportError checks if the error is a transport error and returns it.
func IsTransportError(err error) (*TransportError, bool) {
	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr, true
	}

	return nil, false
}

// IsMissingMeta checks if the error reports a response without meta.serverTime.
func IsMissingMeta(err error) bool {
	return errors.Is(err, ErrMissingMeta)
}

// IsLoginError checks if the error is a structured login failure.
func IsLoginError(err error) bool {
	loginErr := &LoginError{}

	return errors.As(err, &loginErr)
}
