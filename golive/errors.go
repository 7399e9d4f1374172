package golive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/intility/dadp-mcp-go-live/report"
)

// HTTPStatusError is returned when the backend answers with a non-2xx status.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	// Message is the backend's "error" field when the body carries one,
	// otherwise the raw body.
	Message string
}

func newHTTPStatusError(method, url string, status int, body []byte) *HTTPStatusError {
	e := &HTTPStatusError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       string(body),
	}

	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		e.Message = payload.Error
		if payload.Details != "" {
			e.Message += " (" + payload.Details + ")"
		}
	} else {
		e.Message = strings.TrimSpace(e.Body)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// TransportError covers failures below HTTP: dial, DNS, timeouts, cancellation.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// DecodeError means a 2xx response body did not hold the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed backend response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind names the failure class of err, or "" when err did not come from
// talking to the backend.
func Kind(err error) string {
	var (
		statusErr    *HTTPStatusError
		transportErr *TransportError
		decodeErr    *DecodeError
		validErr     *report.ValidationError
	)
	switch {
	case errors.As(err, &statusErr):
		return "HTTPStatusError"
	case errors.As(err, &transportErr):
		if transportErr.Timeout() {
			return "TimeoutError"
		}
		return "TransportError"
	case errors.As(err, &decodeErr):
		return "DecodeError"
	case errors.As(err, &validErr):
		return "ValidationError"
	}
	return ""
}

// IsDuplicate reports whether the backend rejected a submission because a
// report for the repository already exists. A 409 is authoritative; the
// "already exists" match on the message or the raw body keeps working with
// backends that answer with another status.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusConflict || mentionsDuplicate(statusErr.Body) {
			return true
		}
	}
	return mentionsDuplicate(err.Error())
}

func mentionsDuplicate(s string) bool {
	return strings.Contains(strings.ToLower(s), "already exists")
}

func IsNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
