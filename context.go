package httpkit

import (
	"context"
)

type contextKey[T any] struct{}

// SetValue stores a typed value in ctx. For use in middleware.
func SetValue[T any](ctx context.Context, val T) context.Context {
	return context.WithValue(ctx, contextKey[T]{}, val)
}

// GetValue retrieves a typed value from ctx. For use in handlers.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

// WithValue returns middleware that stores val in the context of every
// request.
func WithValue[T any](val T) Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			return next.Handle(SetValue(ctx, val), req, resp)
		})
	}
}

// scopedContext returns a context with the values of values and the
// deadline and cancellation of lifetime. The returned cancel must be called
// once the context is no longer needed.
func scopedContext(values, lifetime context.Context) (context.Context, context.CancelFunc) {
	if values == nil {
		values = lifetime
	}
	base := context.WithoutCancel(values)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := lifetime.Deadline(); ok {
		ctx, cancel = context.WithDeadline(base, deadline)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	if lifetime.Err() != nil {
		cancel()
	}
	stop := context.AfterFunc(lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
