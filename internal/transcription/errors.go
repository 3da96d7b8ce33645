package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAPIKey is returned when a request is attempted without credentials.
// It is an authentication-class error.
var ErrMissingAPIKey = errors.New("transcription: api key is not configured")

// Kind classifies API errors
type Kind int

const (
	KindAuth Kind = iota + 1
	KindRateLimit
	KindServer
	KindClient
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// maxErrorBody caps the response body kept on an APIError
const maxErrorBody = 2048

// APIError is a non-2xx or malformed response from the transcription API
type APIError struct {
	StatusCode int
	Body       string
	Kind       Kind
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcription api error (%s): HTTP %d: %s", e.Kind, e.StatusCode, e.Body)
}

func newAPIError(status int, body []byte) *APIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{StatusCode: status, Body: string(body), Kind: kindForStatus(status)}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// NetworkError is a transport-level failure: connection errors and timeouts.
type NetworkError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transcription network error: %s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transcription network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an authentication-class error
func IsAuth(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsNetwork reports whether err is a network-class error
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsTimeout reports whether err is a network timeout
func IsTimeout(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Timeout
}

// IsRetryable reports whether a failed request may succeed when repeated
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsNetwork(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindRateLimit || apiErr.Kind == KindServer
	}
	return false
}

// ErrorKind returns a short label for logging and metrics
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingAPIKey):
		return KindAuth.String()
	case IsTimeout(err):
		return "timeout"
	case IsNetwork(err):
		return "network"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind.String()
	}
	return "other"
}
