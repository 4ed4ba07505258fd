package httpkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// BodyLimit returns middleware that limits the maximum request body size.
// Reading past maxBytes fails with ErrBodyTooLarge, which is answered with
// 413 Payload Too Large and an empty body.
func BodyLimit(maxBytes int64) Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			limited := WithBody(req, limitStream(req.Body, maxBytes))
			return resolve(next.Handle(ctx, limited, resp)).Recover(func(_ context.Context, err error) Responder {
				if errors.Is(err, ErrBodyTooLarge) {
					return NewResponseBuilder().Status(http.StatusRequestEntityTooLarge).Empty()
				}
				return Fail(err)
			})
		})
	}
}

// limitStream fails with ErrBodyTooLarge once more than n bytes are read.
func limitStream(s Stream, n int64) Stream {
	var read int64
	return newStream(func() ([]byte, error) {
		chunk, err := s.Next()
		if err != nil {
			return nil, err
		}
		read += int64(len(chunk))
		if read > n {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, n)
		}
		return chunk, nil
	}, s.Close)
}
