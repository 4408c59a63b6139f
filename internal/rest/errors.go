package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, rest.ErrNotFound) to check.
var (
	ErrBadRequest         = errors.New("rest: bad request")
	ErrUnauthorized       = errors.New("rest: unauthorized")
	ErrForbidden          = errors.New("rest: forbidden")
	ErrNotFound           = errors.New("rest: not found")
	ErrConflict           = errors.New("rest: conflict")
	ErrPreconditionFailed = errors.New("rest: precondition failed")
	ErrThrottled          = errors.New("rest: throttled")
	ErrServerError        = errors.New("rest: server error")
)

// Error wraps a sentinel error with the HTTP status, the service error
// code (x-ms-error-code header or OData error body), the request ID,
// and the raw message body for debugging.
type Error struct {
	StatusCode int
	Code       string
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	code := e.Code
	if code == "" {
		code = http.StatusText(e.StatusCode)
	}

	if e.RequestID != "" {
		return fmt.Sprintf("rest: HTTP %d %s (request-id: %s): %s", e.StatusCode, code, e.RequestID, e.Message)
	}

	return fmt.Sprintf("rest: HTTP %d %s: %s", e.StatusCode, code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// odataError is the error body shape shared by Graph, ARM, and the
// DFS endpoint.
type odataError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// readError consumes a non-2xx response body and folds it into *Error.
// The body is always closed.
func readError(resp *http.Response) *Error {
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		body = []byte("(failed to read response body)")
	}

	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		Err:        classifyStatus(resp.StatusCode),
	}

	// The storage endpoint reports its error code in a header; the
	// OData services put it in the body. Prefer the structured header.
	apiErr.Code = resp.Header.Get("x-ms-error-code")

	var parsed odataError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Code != "" {
		if apiErr.Code == "" {
			apiErr.Code = parsed.Error.Code
		}

		if parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
		}
	}

	if id := resp.Header.Get("x-ms-request-id"); id != "" {
		apiErr.RequestID = id
	} else {
		apiErr.RequestID = resp.Header.Get("request-id")
	}

	return apiErr
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
