package httpkit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware wraps a handler. Middleware sees every request before the body
// is materialized, so it composes with any boxed handler.
type Middleware func(next Handler[Stream]) Handler[Stream]

// Chain wraps h with mw. The first middleware is the outermost.
func Chain(h Handler[Stream], mw ...Middleware) Handler[Stream] {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Recovery returns middleware that recovers from panics, both in Handle and
// while the response is being produced, and responds with 500.
func Recovery() Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) (r Responder) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.ErrorContext(ctx, "panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", req.Method,
						"path", req.Path(),
					)
					r = internalError()
				}
			}()

			return resolve(next.Handle(ctx, req, resp)).Recover(func(ctx context.Context, err error) Responder {
				if !errors.Is(err, ErrPanic) {
					return Fail(err)
				}
				slog.ErrorContext(ctx, "panic recovered",
					"error", err,
					"method", req.Method,
					"path", req.Path(),
				)
				return internalError()
			})
		})
	}
}

func internalError() Responder {
	return NewResponseBuilder().Status(http.StatusInternalServerError).Empty()
}

// withHeaders returns a Pending whose successful response carries a copy of
// the response headers modified by fn.
func withHeaders(p *Pending, fn func(h http.Header)) *Pending {
	return p.Then(func(_ context.Context, resp *Response[Stream]) (*Response[Stream], error) {
		h := resp.Header.Clone()
		if h == nil {
			h = make(http.Header)
		}
		fn(h)
		return &Response[Stream]{Status: resp.Status, Header: h, Body: resp.Body}, nil
	})
}

// withBody returns a copy of resp carrying body.
func withBody(resp *Response[Stream], body Stream) *Response[Stream] {
	return &Response[Stream]{
		Status: resp.Status,
		Header: resp.Header,
		Body:   body,
	}
}
