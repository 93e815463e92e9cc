package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/quest-backend/internal/pkg/httpx"
)

type ErrorKind string

const (
	// KindConnectivity covers unreachable backends, timeouts and 5xx responses.
	KindConnectivity ErrorKind = "connectivity"
	KindRateLimit    ErrorKind = "rate_limit"
	// KindRejected is a 4xx the backend refused to serve.
	KindRejected ErrorKind = "rejected"
	KindUnknown  ErrorKind = "unknown"
)

type Error struct {
	Kind       ErrorKind
	Backend    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "llm error"
	}
	msg := fmt.Sprintf("llm %s (%s)", e.Kind, e.Backend)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatusCode() int { return e.StatusCode }

// Retryable is true for connectivity and rate-limit failures.
func (e *Error) Retryable() bool {
	return e != nil && (e.Kind == KindConnectivity || e.Kind == KindRateLimit)
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }

// KindForStatus maps an upstream HTTP status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case httpx.IsRetryableHTTPStatus(status):
		return KindConnectivity
	case status >= 400:
		return KindRejected
	default:
		return KindUnknown
	}
}

// Classify wraps err into an *Error for backend. An existing *Error is kept.
// Caller cancellation is returned unchanged.
func Classify(backend string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatusCode()
		return &Error{Kind: KindForStatus(status), Backend: backend, StatusCode: status, Err: err}
	}
	if httpx.IsTransportError(err) {
		return &Error{Kind: KindConnectivity, Backend: backend, Err: err}
	}
	return &Error{Kind: KindUnknown, Backend: backend, Err: err}
}
