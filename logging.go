package httpkit

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Logger returns middleware that logs each request using the provided
// slog.Logger. The entry is written once the response body has been fully
// sent, so latency and size cover the whole exchange.
func Logger(logger *slog.Logger) Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			start := time.Now()
			pending := resolve(next.Handle(ctx, req, resp))

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.Path()),
				slog.String("remote", req.RemoteAddr),
			}
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			return Defer(func(ctx context.Context) (*Response[Stream], error) {
				out, err := pending.Await(ctx)
				if err != nil {
					attrs = append(attrs,
						slog.Int("status", http.StatusInternalServerError),
						slog.Duration("latency", time.Since(start)),
						slog.String("error", err.Error()),
					)
					logger.LogAttrs(ctx, slog.LevelError, "request", attrs...)
					return nil, err
				}

				body := tapStream(out.Body, func(size int64, streamErr error) {
					attrs = append(attrs,
						slog.Int("status", out.Status),
						slog.Duration("latency", time.Since(start)),
						slog.Int64("size", size),
					)
					level := slog.LevelInfo
					if streamErr != nil {
						level = slog.LevelWarn
						attrs = append(attrs, slog.String("error", streamErr.Error()))
					}
					logger.LogAttrs(ctx, level, "request", attrs...)
				})
				return withBody(out, body), nil
			})
		})
	}
}
