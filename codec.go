package httpkit

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// Codec encodes and decodes values in one wire format.
type Codec interface {
	ContentType() string
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

// jsonCodec implements Codec for JSON.
type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func (jsonCodec) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// xmlCodec implements Codec for XML.
type xmlCodec struct{}

func (xmlCodec) ContentType() string { return "application/xml" }

func (xmlCodec) Encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

func (xmlCodec) Decode(r io.Reader, v any) error {
	return xml.NewDecoder(r).Decode(v)
}

// encodeStream returns a single-chunk stream that encodes v on first read.
func encodeStream(c Codec, v any) Stream {
	return lazyStream(func() ([]byte, error) {
		var buf bytes.Buffer
		if err := c.Encode(&buf, v); err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.ContentType(), err)
		}
		return buf.Bytes(), nil
	})
}

// decodeStream drains s and decodes the result into v. An empty body is a
// decode error.
func decodeStream(ctx context.Context, c Codec, s Stream, v any) error {
	data, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	if err := c.Decode(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, c.ContentType(), err)
	}
	return nil
}

// JSON is a body holding a value encoded as JSON on the wire.
type JSON[T any] struct {
	Value T
}

// IntoStream encodes the value lazily, when the stream is first read.
func (j JSON[T]) IntoStream() Stream {
	return encodeStream(jsonCodec{}, j.Value)
}

// ReadStream drains s and decodes it as JSON.
func (j *JSON[T]) ReadStream(ctx context.Context, s Stream) error {
	return decodeStream(ctx, jsonCodec{}, s, &j.Value)
}

// XML is a body holding a value encoded as XML on the wire.
type XML[T any] struct {
	Value T
}

// IntoStream encodes the value lazily, with an XML header.
func (x XML[T]) IntoStream() Stream {
	return encodeStream(xmlCodec{}, x.Value)
}

// ReadStream drains s and decodes it as XML.
func (x *XML[T]) ReadStream(ctx context.Context, s Stream) error {
	return decodeStream(ctx, xmlCodec{}, s, &x.Value)
}

// Negotiate picks JSON or XML for v based on the Accept header and sets the
// matching Content-Type. An explicit Accept with no supported media type
// yields 406 with an empty body.
func Negotiate[T any](resp *ResponseBuilder, accept string, v T) Responder {
	c, ok := negotiate(accept)
	if !ok {
		return resp.Status(http.StatusNotAcceptable).Body(Empty{})
	}
	resp.ContentType(c.ContentType())
	if _, isXML := c.(xmlCodec); isXML {
		return resp.Body(XML[T]{Value: v})
	}
	return resp.Body(JSON[T]{Value: v})
}

// negotiate returns JSON for empty or */* accept values and (nil, false)
// when an explicit Accept matches nothing.
func negotiate(accept string) (Codec, bool) {
	codecs := []Codec{jsonCodec{}, xmlCodec{}}
	if accept == "" {
		return codecs[0], true
	}

	var (
		best    Codec
		quality = -1.0
	)
	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		q := 1.0
		if qs, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(qs, 64); err == nil {
				q = parsed
			}
		}
		if q <= quality || q == 0 {
			continue
		}

		if mediaType == "*/*" {
			best, quality = codecs[0], q
			continue
		}
		for _, c := range codecs {
			if c.ContentType() == mediaType {
				best, quality = c, q
				break
			}
		}
	}
	return best, best != nil
}
