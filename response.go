package httpkit

import (
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"
)

// Response is an HTTP response with a body of type B.
type Response[B Body] struct {
	Status int
	Header http.Header
	Body   B
}

// IntoResponse erases the body to a Stream and returns a ready outcome.
func (r *Response[B]) IntoResponse() *Pending {
	if r == nil {
		return Failed(ErrNilResponse)
	}
	return Ready(r.erase())
}

func (r *Response[B]) erase() *Response[Stream] {
	if s, ok := any(r).(*Response[Stream]); ok {
		return s
	}
	header := r.Header
	if header == nil {
		header = make(http.Header)
	}
	var body Stream
	if any(r.Body) != nil {
		body = r.Body.IntoStream()
	}
	return &Response[Stream]{
		Status: r.Status,
		Header: header,
		Body:   body,
	}
}

// Validate reports whether r can be written to the wire: a status in
// 100..999 and well-formed ASCII headers.
func (r *Response[B]) Validate() error {
	if r.Status < 100 || r.Status > 999 {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, r.Status)
	}
	for key, values := range r.Header {
		for _, value := range values {
			if err := validHeader(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResponseBuilder accumulates a status and headers. The first invalid input
// is recorded and reported when the response is built.
type ResponseBuilder struct {
	status int
	header http.Header
	err    error
}

// NewResponseBuilder returns a builder for a 200 response with no headers.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{
		status: http.StatusOK,
		header: make(http.Header),
	}
}

// Status sets the status code. Codes outside 100..999 are rejected.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	if code < 100 || code > 999 {
		b.fail(fmt.Errorf("%w: %d", ErrInvalidStatus, code))
		return b
	}
	b.status = code
	return b
}

// Header adds a header value, keeping any existing values.
func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	if err := validHeader(key, value); err != nil {
		b.fail(err)
		return b
	}
	b.header.Add(key, value)
	return b
}

// SetHeader replaces all values of a header.
func (b *ResponseBuilder) SetHeader(key, value string) *ResponseBuilder {
	if err := validHeader(key, value); err != nil {
		b.fail(err)
		return b
	}
	b.header.Set(key, value)
	return b
}

// ContentType sets the Content-Type header.
func (b *ResponseBuilder) ContentType(contentType string) *ResponseBuilder {
	return b.SetHeader("Content-Type", contentType)
}

// Err returns the first error recorded by the builder.
func (b *ResponseBuilder) Err() error {
	return b.err
}

// Body finishes the response with body.
func (b *ResponseBuilder) Body(body Body) Responder {
	return Respond(Build(b, body))
}

// Empty finishes the response with no body.
func (b *ResponseBuilder) Empty() Responder {
	return b.Body(Empty{})
}

func (b *ResponseBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build returns the typed response described by b. The header map is copied,
// so the builder can be reused.
func Build[B Body](b *ResponseBuilder, body B) (*Response[B], error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Response[B]{
		Status: b.status,
		Header: b.header.Clone(),
		Body:   body,
	}, nil
}

func validHeader(key, value string) error {
	if !httpguts.ValidHeaderFieldName(key) {
		return fmt.Errorf("%w: name %q", ErrInvalidHeader, key)
	}
	if !httpguts.ValidHeaderFieldValue(value) || !isASCII(value) {
		return fmt.Errorf("%w: value for %q", ErrInvalidHeader, key)
	}
	return nil
}

func isASCII(s string) bool {
	for i := range len(s) {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
