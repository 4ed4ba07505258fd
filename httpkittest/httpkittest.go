// Package httpkittest provides test helpers for httpkit handlers: an
// in-process Invoke and a Client for handlers served over a real socket.
package httpkittest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/bjaus/httpkit"
	"github.com/bjaus/httpkit/servers/nethttp"
)

// Response holds a fully read response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Err is the handler failure, for Invoke only. Status is 500 when set.
	Err error
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body of r into a T.
func JSON[T any](t testing.TB, r *Response) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(r.Body, &v); err != nil {
		t.Fatalf("httpkittest: decode json %q: %v", r.Body, err)
	}
	return v
}

// Invoke runs h in-process for a request built from method, target and
// body, and reads the whole response. A failed handler is reported the way
// the servers report it: 500 with an empty body, with the error kept in Err.
func Invoke(t testing.TB, h httpkit.Handler[httpkit.Stream], method, target, body string) *Response {
	t.Helper()

	req, err := httpkit.NewRequest(method, target, httpkit.StreamOf([]byte(body)))
	if err != nil {
		t.Fatalf("httpkittest: create request: %v", err)
	}
	return InvokeRequest(t, h, req)
}

// InvokeRequest is Invoke for a prepared request.
func InvokeRequest(t testing.TB, h httpkit.Handler[httpkit.Stream], req *httpkit.Request[httpkit.Stream]) *Response {
	t.Helper()
	ctx := context.Background()

	resp, err := httpkit.Serve(ctx, h, req)
	if err == nil {
		err = resp.Validate()
	}
	if err != nil {
		return &Response{Status: http.StatusInternalServerError, Header: http.Header{}, Err: err}
	}

	data, err := resp.Body.Collect(ctx)
	if err != nil {
		return &Response{Status: http.StatusInternalServerError, Header: http.Header{}, Err: err}
	}
	return &Response{Status: resp.Status, Header: resp.Header, Body: data}
}

// Client sends requests to a running server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for a server listening on addr.
func NewClient(t testing.TB, addr net.Addr) *Client {
	t.Helper()
	c := &Client{
		BaseURL: "http://" + addr.String(),
		HTTP:    &http.Client{Transport: &http.Transport{}},
	}
	t.Cleanup(c.HTTP.CloseIdleConnections)
	return c
}

// Serve starts h on a nethttp server bound to a free local port and returns
// a client for it. The server is closed when the test ends.
func Serve[B httpkit.Body, P httpkit.BodyPointer[B]](t testing.TB, h httpkit.Handler[B], opts ...nethttp.Option) *Client {
	t.Helper()

	srv, err := nethttp.New[B, P]("127.0.0.1:0", h, opts...)
	if err != nil {
		t.Fatalf("httpkittest: start server: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("httpkittest: close server: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("httpkittest: run server: %v", err)
		}
	})

	return NewClient(t, srv.Addr())
}

// Get sends a GET request.
func (c *Client) Get(t testing.TB, path string) *Response {
	t.Helper()
	return c.Do(t, http.MethodGet, path, "", nil)
}

// Post sends a POST request with the given content type and body.
func (c *Client) Post(t testing.TB, path, contentType, body string) *Response {
	t.Helper()
	return c.Do(t, http.MethodPost, path, body, http.Header{"Content-Type": {contentType}})
}

// Do sends a request and reads the whole response.
func (c *Client) Do(t testing.TB, method, path, body string, header http.Header) *Response {
	t.Helper()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("httpkittest: create request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("httpkittest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("httpkittest: close body: %v", closeErr)
		}
	}()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("httpkittest: read body: %v", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   buf.Bytes(),
	}
}
