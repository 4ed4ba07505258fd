package httpkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
)

// Sentinel errors. Failures are wrapped around these with %w so callers can
// match on them with errors.Is.
var (
	ErrDecode        = errors.New("decode body")
	ErrInvalidUTF8   = errors.New("invalid utf-8")
	ErrInvalidHeader = errors.New("invalid header")
	ErrInvalidStatus = errors.New("invalid status code")
	ErrInvalidMethod = errors.New("invalid method")
	ErrStreamClosed  = errors.New("stream closed")
	ErrBodyTooLarge  = errors.New("body too large")
	ErrNilResponse   = errors.New("nil response")
	ErrPanic         = errors.New("panic")
	ErrOutsideRoot   = fmt.Errorf("path outside root: %w", fs.ErrNotExist)
	ErrDuplicatePath = errors.New("duplicate pattern")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details body.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// Problem converts an error into an application/problem+json response. It is
// meant to be passed to WithErrorHandling. Errors without a StatusCoder are
// reported as 500 without their message, so internal failures never leak.
func Problem(_ context.Context, err error) Responder {
	status := ErrorStatus(err)

	var pd *ProblemDetail
	if !errors.As(err, &pd) {
		pd = &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
		}
		if status != http.StatusInternalServerError {
			pd.Detail = err.Error()
		}
	}

	return NewResponseBuilder().
		Status(pd.Status).
		ContentType("application/problem+json").
		Body(JSON[*ProblemDetail]{Value: pd})
}
