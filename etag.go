package httpkit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETagConfig configures the ETag middleware.
type ETagConfig struct {
	Weak bool // use weak ETags
}

// ETag returns middleware that handles conditional GET and HEAD requests via
// ETag and If-None-Match. Successful bodies are collected to compute the tag,
// so it should not wrap streaming endpoints.
func ETag(cfg ...ETagConfig) Middleware {
	c := ETagConfig{}
	if len(cfg) > 0 {
		c = cfg[0]
	}

	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			p := resolve(next.Handle(ctx, req, resp))
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return p
			}

			return p.Then(func(ctx context.Context, r *Response[Stream]) (*Response[Stream], error) {
				// Only 2xx responses carry a tag.
				if r.Status < 200 || r.Status >= 300 {
					return r, nil
				}

				data, err := r.Body.Collect(ctx)
				if err != nil {
					return nil, err
				}

				hash := sha256.Sum256(data)
				etag := `"` + hex.EncodeToString(hash[:8]) + `"`
				if c.Weak {
					etag = "W/" + etag
				}

				h := r.Header.Clone()
				if h == nil {
					h = make(http.Header)
				}
				h.Set("ETag", etag)

				if match := req.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
					h.Del("Content-Length")
					return &Response[Stream]{Status: http.StatusNotModified, Header: h, Body: EmptyStream()}, nil
				}
				return &Response[Stream]{Status: r.Status, Header: h, Body: StreamOf(data)}, nil
			})
		})
	}
}
