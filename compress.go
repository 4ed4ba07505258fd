package httpkit

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressConfig configures the Compress middleware.
type CompressConfig struct {
	Level   int      // gzip level (1-9, default: 5)
	MinSize int      // minimum size of the first body chunk to compress (default: 1024)
	Types   []string // content types to compress (default: application/json, text/*)
}

// Compress returns middleware that gzip-compresses response bodies. The body
// is compressed chunk by chunk as it is read, so streamed responses stay
// streamed.
func Compress(cfg ...CompressConfig) Middleware {
	c := CompressConfig{
		Level:   5,
		MinSize: 1024,
		Types:   []string{"application/json", "text/"},
	}
	if len(cfg) > 0 {
		if cfg[0].Level > 0 {
			c.Level = cfg[0].Level
		}
		if cfg[0].MinSize > 0 {
			c.MinSize = cfg[0].MinSize
		}
		if len(cfg[0].Types) > 0 {
			c.Types = cfg[0].Types
		}
	}

	pool := &sync.Pool{
		New: func() any {
			gz, _ := gzip.NewWriterLevel(io.Discard, c.Level) //nolint:errcheck // level is pre-validated
			return gz
		},
	}

	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			pending := resolve(next.Handle(ctx, req, resp))
			if !strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
				return pending
			}

			return pending.Then(func(_ context.Context, out *Response[Stream]) (*Response[Stream], error) {
				header := out.Header.Clone()
				if header == nil {
					header = make(http.Header)
				}
				header.Add("Vary", "Accept-Encoding")

				if !shouldCompress(header, c.Types) {
					return &Response[Stream]{Status: out.Status, Header: header, Body: out.Body}, nil
				}

				first, err := out.Body.Next()
				if errors.Is(err, io.EOF) || (err == nil && len(first) < c.MinSize) {
					body := prepend(first, out.Body)
					return &Response[Stream]{Status: out.Status, Header: header, Body: body}, nil
				}
				if err != nil {
					return nil, err
				}

				header.Set("Content-Encoding", "gzip")
				header.Del("Content-Length")
				gz := pool.Get().(*gzip.Writer) //nolint:errcheck,forcetypeassert // pool.New always returns *gzip.Writer
				body := gzipStream(gz, prepend(first, out.Body), func() { pool.Put(gz) })
				return &Response[Stream]{Status: out.Status, Header: header, Body: body}, nil
			})
		})
	}
}

func shouldCompress(header http.Header, types []string) bool {
	contentType := header.Get("Content-Type")
	// Skip SSE and already-compressed responses.
	if strings.Contains(contentType, "event-stream") {
		return false
	}
	if header.Get("Content-Encoding") != "" {
		return false
	}
	for _, t := range types {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// prepend returns a stream that yields chunk before the rest of s.
func prepend(chunk []byte, s Stream) Stream {
	sent := chunk == nil
	return newStream(func() ([]byte, error) {
		if !sent {
			sent = true
			return chunk, nil
		}
		return s.Next()
	}, s.Close)
}

// gzipStream compresses src as it is read. Each output chunk holds whatever
// the compressor produced for one or more input chunks. release runs once
// the stream is done with gz.
func gzipStream(gz *gzip.Writer, src Stream, release func()) Stream {
	var (
		buf    bytes.Buffer
		closed bool
	)
	gz.Reset(&buf)

	return newStream(func() ([]byte, error) {
		for !closed {
			chunk, err := src.Next()
			switch {
			case errors.Is(err, io.EOF):
				closed = true
				if err := gz.Close(); err != nil {
					return nil, err
				}
			case err != nil:
				return nil, err
			default:
				if _, err := gz.Write(chunk); err != nil {
					return nil, err
				}
				if err := gz.Flush(); err != nil {
					return nil, err
				}
			}
			if buf.Len() > 0 {
				out := bytes.Clone(buf.Bytes())
				buf.Reset()
				return out, nil
			}
		}
		return nil, io.EOF
	}, func() error {
		err := src.Close()
		gz.Reset(io.Discard)
		release()
		return err
	})
}
