package httpkit

import (
	"context"
)

// Box erases the body type of h. The returned handler materializes a B from
// the request stream, runs h and erases the response body back to a Stream.
// Materialization failures fail the response without calling h.
//
// h sees the values of the context passed to Handle, bounded by the
// lifetime of the context the response is awaited with. That context stays
// live until the response body ends or is closed.
//
// P is inferred, so callers write Box[Text](h).
func Box[B Body, P BodyPointer[B]](h Handler[B]) Handler[Stream] {
	return &boxed[B, P]{inner: h}
}

// BoxFunc is Box for a plain function.
func BoxFunc[B Body, P BodyPointer[B]](fn func(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder) Handler[Stream] {
	return Box[B, P](HandlerFunc[B](fn))
}

type boxed[B Body, P BodyPointer[B]] struct {
	inner Handler[B]
}

func (b *boxed[B, P]) Handle(hctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
	return Defer(func(actx context.Context) (*Response[Stream], error) {
		ctx, cancel := scopedContext(hctx, actx)

		body, err := FromStream[B, P](ctx, req.Body)
		if err != nil {
			cancel()
			return nil, err
		}
		out, err := resolve(b.inner.Handle(ctx, WithBody(req, body), resp)).Await(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		return withBody(out, tapStream(out.Body, func(int64, error) { cancel() })), nil
	})
}
