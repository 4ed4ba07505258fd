package httpkit

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Body is anything that can be turned into a Stream for the wire.
type Body interface {
	IntoStream() Stream
}

// BodyPointer is the decoding side of a body type B: *B fills itself from a
// Stream. Generic code takes both parameters so it can allocate a B and decode
// into it.
type BodyPointer[B any] interface {
	*B
	ReadStream(ctx context.Context, s Stream) error
}

// FromStream materializes a B from s. Every body type except Stream drains s
// completely before returning.
func FromStream[B any, P BodyPointer[B]](ctx context.Context, s Stream) (B, error) {
	var body B
	if err := P(&body).ReadStream(ctx, s); err != nil {
		var zero B
		return zero, err
	}
	return body, nil
}

// Convert turns any body into a B by going through its stream.
func Convert[B any, P BodyPointer[B]](ctx context.Context, src Body) (B, error) {
	return FromStream[B, P](ctx, src.IntoStream())
}

// Empty is a body with no content. Decoding drains and discards the stream.
type Empty struct{}

// IntoStream returns an empty stream.
func (Empty) IntoStream() Stream { return EmptyStream() }

// ReadStream drains s.
func (*Empty) ReadStream(ctx context.Context, s Stream) error {
	return s.drain(ctx)
}

// Bytes is an opaque byte body.
type Bytes []byte

// IntoStream yields b as a single chunk.
func (b Bytes) IntoStream() Stream { return StreamOf(b) }

// ReadStream collects s.
func (b *Bytes) ReadStream(ctx context.Context, s Stream) error {
	data, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	*b = data
	return nil
}

// Text is a UTF-8 body.
type Text string

// IntoStream yields the text as a single chunk.
func (t Text) IntoStream() Stream { return StreamOf([]byte(t)) }

// ReadStream collects s and validates it as UTF-8.
func (t *Text) ReadStream(ctx context.Context, s Stream) error {
	data, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: %w", ErrDecode, ErrInvalidUTF8)
	}
	*t = Text(data)
	return nil
}
