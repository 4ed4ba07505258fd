package httpkit

import (
	"context"
)

// Handler handles requests whose body has already been materialized as B.
// Handlers are shared across concurrent requests and must not keep
// per-request state.
type Handler[B Body] interface {
	Handle(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[B Body] func(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder

// Handle calls f.
func (f HandlerFunc[B]) Handle(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder {
	return f(ctx, req, resp)
}

// WithContext returns a handler that passes value to fn on every request.
// value is shared by all requests, so it must be safe for concurrent use.
func WithContext[C any, B Body](
	value C,
	fn func(value C, ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder,
) Handler[B] {
	return HandlerFunc[B](func(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder {
		return fn(value, ctx, req, resp)
	})
}

// WithErrorHandling returns a handler that turns failures of h into the
// response produced by onError.
func WithErrorHandling[B Body](h Handler[B], onError func(ctx context.Context, err error) Responder) Handler[B] {
	return HandlerFunc[B](func(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder {
		return resolve(h.Handle(ctx, req, resp)).Recover(onError)
	})
}

// Serve runs h for req with a fresh builder and waits for the response.
func Serve[B Body](ctx context.Context, h Handler[B], req *Request[B]) (*Response[Stream], error) {
	return resolve(h.Handle(ctx, req, NewResponseBuilder())).Await(ctx)
}
