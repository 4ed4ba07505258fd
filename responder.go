package httpkit

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Responder is anything that can become a pending response.
type Responder interface {
	IntoResponse() *Pending
}

// Pending is a response outcome that resolves once, to either a
// *Response[Stream] or an error. Nothing runs until the first Await; later
// calls return the memoised outcome.
type Pending struct {
	once sync.Once
	run  func(ctx context.Context) (*Response[Stream], error)
	resp *Response[Stream]
	err  error
}

// Defer returns a Pending that calls run on the first Await.
func Defer(run func(ctx context.Context) (*Response[Stream], error)) *Pending {
	return &Pending{run: run}
}

// Ready returns a Pending already resolved to resp.
func Ready(resp *Response[Stream]) *Pending {
	return Defer(func(context.Context) (*Response[Stream], error) { return resp, nil })
}

// Failed returns a Pending already resolved to err.
func Failed(err error) *Pending {
	return Defer(func(context.Context) (*Response[Stream], error) { return nil, err })
}

// IntoResponse returns p.
func (p *Pending) IntoResponse() *Pending { return p }

// Await resolves the outcome. Only the first call's ctx is used. A panic in
// the computation resolves to an error wrapping ErrPanic.
func (p *Pending) Await(ctx context.Context) (*Response[Stream], error) {
	p.once.Do(func() {
		defer func() {
			if rec := recover(); rec != nil {
				p.resp, p.err = nil, fmt.Errorf("%w: %v\n%s", ErrPanic, rec, debug.Stack())
			}
			p.run = nil
		}()
		resp, err := p.run(ctx)
		if err == nil && resp == nil {
			err = ErrNilResponse
		}
		p.resp, p.err = resp, err
	})
	return p.resp, p.err
}

// Then returns a Pending that transforms a successful outcome with fn.
// Failures pass through untouched.
func (p *Pending) Then(fn func(ctx context.Context, resp *Response[Stream]) (*Response[Stream], error)) *Pending {
	return Defer(func(ctx context.Context) (*Response[Stream], error) {
		resp, err := p.Await(ctx)
		if err != nil {
			return nil, err
		}
		return fn(ctx, resp)
	})
}

// Recover returns a Pending that replaces a failure with the response
// produced by fn. Successful outcomes pass through untouched.
func (p *Pending) Recover(fn func(ctx context.Context, err error) Responder) *Pending {
	return Defer(func(ctx context.Context) (*Response[Stream], error) {
		resp, err := p.Await(ctx)
		if err == nil {
			return resp, nil
		}
		return resolve(fn(ctx, err)).Await(ctx)
	})
}

// resolve converts r to a Pending, treating a nil Responder as a failure.
func resolve(r Responder) *Pending {
	if r == nil {
		return Failed(ErrNilResponse)
	}
	if p := r.IntoResponse(); p != nil {
		return p
	}
	return Failed(ErrNilResponse)
}

// Result is a Responder for a response that may have failed to build.
type Result[B Body] struct {
	Response *Response[B]
	Err      error
}

// Respond pairs a response with an error, typically straight from Build.
func Respond[B Body](resp *Response[B], err error) Result[B] {
	return Result[B]{Response: resp, Err: err}
}

// IntoResponse fails with r.Err or erases r.Response.
func (r Result[B]) IntoResponse() *Pending {
	if r.Err != nil {
		return Failed(r.Err)
	}
	return r.Response.IntoResponse()
}

// Future is a response computed when it is awaited.
type Future[B Body] func(ctx context.Context) (*Response[B], error)

// IntoResponse defers f until Await.
func (f Future[B]) IntoResponse() *Pending {
	return Defer(func(ctx context.Context) (*Response[Stream], error) {
		resp, err := f(ctx)
		if err != nil {
			return nil, err
		}
		return resolve(resp).Await(ctx)
	})
}

// Spawn starts fn on its own goroutine right away and returns a Future that
// waits for it. Awaiting gives up when the awaiting context is done; fn keeps
// ctx and is expected to honour it. The Future yields its outcome once.
func Spawn[B Body](ctx context.Context, fn func(ctx context.Context) (*Response[B], error)) Future[B] {
	type outcome struct {
		resp *Response[B]
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrPanic, rec)}
			}
		}()
		resp, err := fn(ctx)
		done <- outcome{resp: resp, err: err}
	}()

	return func(awaitCtx context.Context) (*Response[B], error) {
		select {
		case out := <-done:
			return out.resp, out.err
		case <-awaitCtx.Done():
			return nil, awaitCtx.Err()
		}
	}
}

// Fail returns a Responder that always fails with err.
func Fail(err error) Responder {
	return Failed(err)
}
