package httpkit

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Timeout returns middleware that adds a timeout to the request context.
// If the response does not resolve within the duration, a 503 Service
// Unavailable response with an empty body is sent. The deadline stays in
// force while the body is streamed.
func Timeout(d time.Duration) Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(hctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			return Defer(func(actx context.Context) (*Response[Stream], error) {
				scoped, release := scopedContext(hctx, actx)
				ctx, stop := context.WithTimeout(scoped, d)
				cancel := func() {
					stop()
					release()
				}

				type outcome struct {
					resp *Response[Stream]
					err  error
				}
				done := make(chan outcome, 1)
				go func() {
					defer func() {
						if rec := recover(); rec != nil {
							done <- outcome{err: fmt.Errorf("%w: %v", ErrPanic, rec)}
						}
					}()
					out, err := resolve(next.Handle(ctx, req, resp)).Await(ctx)
					done <- outcome{resp: out, err: err}
				}()

				select {
				case out := <-done:
					if out.err != nil {
						cancel()
						return nil, out.err
					}
					body := tapStream(out.resp.Body, func(int64, error) { cancel() })
					return withBody(out.resp, body), nil
				case <-ctx.Done():
					cancel()
					// Release whatever the handler produces after the deadline.
					go func() {
						if out := <-done; out.resp != nil {
							_ = out.resp.Body.Close()
						}
					}()
					return Build(NewResponseBuilder().Status(http.StatusServiceUnavailable), EmptyStream())
				}
			})
		})
	}
}
