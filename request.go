package httpkit

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Request is an HTTP request with a body of type B. Header keys are
// canonicalized, so lookups are case-insensitive; repeated values keep their
// order.
type Request[B Body] struct {
	Method     string
	URL        *url.URL
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Header     http.Header
	Host       string
	RemoteAddr string
	Body       B
}

// NewRequest returns an HTTP/1.1 request for target, which is a URL or an
// origin-form path such as "/items?page=2".
func NewRequest(method, target string, body Stream) (*Request[Stream], error) {
	if method == "" {
		method = http.MethodGet
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target %q: %w", target, err)
	}
	return &Request[Stream]{
		Method:     method,
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Host:       u.Host,
		Body:       body,
	}, nil
}

func validMethod(method string) bool {
	return method != "" && strings.IndexFunc(method, func(r rune) bool {
		return !httpguts.IsTokenRune(r)
	}) == -1
}

// WithBody returns a shallow copy of req carrying body instead of req.Body.
func WithBody[B, C Body](req *Request[B], body C) *Request[C] {
	return &Request[C]{
		Method:     req.Method,
		URL:        req.URL,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Header:     req.Header,
		Host:       req.Host,
		RemoteAddr: req.RemoteAddr,
		Body:       body,
	}
}

// Path returns the URL path, or "/" when the request has no URL.
func (r *Request[B]) Path() string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// Query returns the parsed query string.
func (r *Request[B]) Query() url.Values {
	if r.URL == nil {
		return url.Values{}
	}
	return r.URL.Query()
}

// Cookie returns the named cookie from the Cookie header.
func (r *Request[B]) Cookie(name string) (*http.Cookie, error) {
	return (&http.Request{Header: r.Header}).Cookie(name)
}
