// Package pooled serves httpkit handlers on a bounded pool of worker
// goroutines using fasthttp. Each request body is read completely before the
// handler runs, and each response body is collected completely before it is
// written.
package pooled

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime"

	"github.com/valyala/fasthttp"

	"github.com/bjaus/httpkit"
)

// Server serves a handler from a fixed-size worker pool.
type Server struct {
	handler  httpkit.Handler[httpkit.Stream]
	listener net.Listener
	srv      *fasthttp.Server
	logger   *slog.Logger

	workers     int
	maxBodySize int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for handler failures and server errors.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWorkers sets the worker pool size, which bounds the number of
// connections served at once. Default: runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxBodySize caps request bodies. Larger requests are rejected by the
// engine before the handler runs. Default: 4 MiB.
func WithMaxBodySize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// New binds addr and returns a server for h. Nothing is served until Run.
// Use port 0 to pick a free port and read it back with Addr.
func New[B httpkit.Body, P httpkit.BodyPointer[B]](addr string, h httpkit.Handler[B], opts ...Option) (*Server, error) {
	s := &Server{
		handler:     httpkit.Box[B, P](h),
		logger:      slog.Default(),
		workers:     runtime.NumCPU(),
		maxBodySize: fasthttp.DefaultMaxRequestBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &fasthttp.Server{
		Handler:              s.HandleFastHTTP,
		ErrorHandler:         s.handleError,
		Name:                 "httpkit",
		Concurrency:          s.workers,
		MaxRequestBodySize:   s.maxBodySize,
		NoDefaultContentType: true,
		Logger:               printfLogger{logger: s.logger},
	}
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Workers returns the worker pool size.
func (s *Server) Workers() int {
	return s.workers
}

// Run serves until the server is closed. It returns nil after Close or
// Shutdown.
func (s *Server) Run() error {
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Close stops the listener and waits for open connections to go idle.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.ShutdownWithContext(ctx)
	// Shutdown only closes listeners that Serve has picked up.
	if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

// HandleFastHTTP is the fasthttp request handler. It runs on a pool worker
// and blocks that worker until the full response is ready. Failures,
// including panics, become 500 with an empty body.
func (s *Server) HandleFastHTTP(ctx *fasthttp.RequestCtx) {
	req := newRequest(ctx)

	resp, body, err := s.respond(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "handler failed",
			"method", req.Method,
			"path", req.Path(),
			"error", err,
		)
		ctx.Response.Reset()
		ctx.SetStatusCode(http.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(resp.Status)
	for key, values := range resp.Header {
		// fasthttp derives framing headers from the body it is given.
		if key == "Content-Length" || key == "Transfer-Encoding" {
			continue
		}
		for _, v := range values {
			ctx.Response.Header.Add(key, v)
		}
	}
	ctx.SetBody(body)
}

// handleError answers requests fasthttp could not read. Bodies over the
// configured maximum get 413, anything else 400.
func (s *Server) handleError(ctx *fasthttp.RequestCtx, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, fasthttp.ErrBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	s.logger.WarnContext(ctx, "request rejected",
		"status", status,
		"remote", ctx.RemoteAddr().String(),
		"error", err,
	)
	ctx.Response.Reset()
	ctx.SetStatusCode(status)
}

func (s *Server) respond(ctx context.Context, req *httpkit.Request[httpkit.Stream]) (resp *httpkit.Response[httpkit.Stream], body []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, body, err = nil, nil, fmt.Errorf("%w: %v", httpkit.ErrPanic, rec)
		}
	}()

	resp, err = httpkit.Serve(ctx, s.handler, req)
	if err != nil {
		return nil, nil, err
	}
	if err := resp.Validate(); err != nil {
		_ = resp.Body.Close()
		return nil, nil, err
	}
	body, err = resp.Body.Collect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collect response body: %w", err)
	}
	return resp, body, nil
}

// newRequest copies everything the handler needs out of ctx, since fasthttp
// reuses its buffers once the handler returns.
func newRequest(ctx *fasthttp.RequestCtx) *httpkit.Request[httpkit.Stream] {
	header := make(http.Header)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		header.Add(string(k), string(v))
	})

	host := string(ctx.Host())
	u, err := url.ParseRequestURI(string(ctx.RequestURI()))
	if err != nil {
		u = &url.URL{Path: string(ctx.Path())}
	}
	u.Host = host
	u.Scheme = "http"
	if ctx.IsTLS() {
		u.Scheme = "https"
	}

	proto := string(ctx.Request.Header.Protocol())
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok {
		proto, major, minor = "HTTP/1.1", 1, 1
	}

	body := httpkit.EmptyStream()
	if raw := ctx.PostBody(); len(raw) > 0 {
		body = httpkit.StreamOf(bytes.Clone(raw))
	}

	return &httpkit.Request[httpkit.Stream]{
		Method:     string(ctx.Method()),
		URL:        u,
		Proto:      proto,
		ProtoMajor: major,
		ProtoMinor: minor,
		Header:     header,
		Host:       host,
		RemoteAddr: ctx.RemoteAddr().String(),
		Body:       body,
	}
}

// printfLogger routes fasthttp's internal messages to slog.
type printfLogger struct {
	logger *slog.Logger
}

func (l printfLogger) Printf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "fasthttp")
}
