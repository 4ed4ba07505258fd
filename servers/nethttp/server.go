// Package nethttp serves httpkit handlers with net/http. Request and response
// bodies are streamed: the handler sees request chunks as they arrive and
// each response chunk is flushed as soon as it is produced.
package nethttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"time"

	"github.com/bjaus/httpkit"
)

// Server serves a handler over a bound listener.
type Server struct {
	handler  httpkit.Handler[httpkit.Stream]
	listener net.Listener
	srv      *http.Server
	logger   *slog.Logger

	readHeaderTimeout time.Duration
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

// WithReadHeaderTimeout sets how long a client may take to send request
// headers. Default: 10s.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

// New binds addr and returns a server for h. Nothing is served until Run.
// Use port 0 to pick a free port and read it back with Addr.
func New[B httpkit.Body, P httpkit.BodyPointer[B]](addr string, h httpkit.Handler[B], opts ...Option) (*Server, error) {
	s := &Server{
		handler:           httpkit.Box[B, P](h),
		logger:            slog.Default(),
		readHeaderTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run serves until the server is closed. It returns nil after Close or
// Shutdown.
func (s *Server) Run() error {
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Close stops the listener and closes all connections immediately.
func (s *Server) Close() error {
	err := s.srv.Close()
	if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler. Failures before the status line is
// written, including panics, become 500 with an empty body. A failure while
// the body is streamed aborts the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := httpkit.StreamReader(r.Body)
	defer func() { _ = body.Close() }()

	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}

	req := &httpkit.Request[httpkit.Stream]{
		Method:     r.Method,
		URL:        &u,
		Proto:      r.Proto,
		ProtoMajor: r.ProtoMajor,
		ProtoMinor: r.ProtoMinor,
		Header:     r.Header,
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		Body:       body,
	}

	resp, first, err := s.respond(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "handler failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	maps.Copy(w.Header(), resp.Header)
	w.WriteHeader(resp.Status)

	rc := http.NewResponseController(w)
	chunk := first
	for {
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				s.logger.DebugContext(ctx, "client went away", "path", r.URL.Path, "error", err)
				return
			}
			//nolint:errcheck // not every writer can flush
			rc.Flush()
		}

		chunk, err = resp.Body.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "response body failed",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
			panic(http.ErrAbortHandler)
		}
	}
}

// respond runs the handler and reads the first body chunk, so that failures
// which surface on the first read still produce a clean 500.
func (s *Server) respond(ctx context.Context, req *httpkit.Request[httpkit.Stream]) (resp *httpkit.Response[httpkit.Stream], first []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, first, err = nil, nil, fmt.Errorf("%w: %v", httpkit.ErrPanic, rec)
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

	first, err = resp.Body.Next()
	switch {
	case errors.Is(err, io.EOF):
		return resp, nil, nil
	case err != nil:
		_ = resp.Body.Close()
		return nil, nil, err
	}
	return resp, first, nil
}
