package httpkit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// streamChunkSize is the read size used when a Stream pulls from an io.Reader.
const streamChunkSize = 32 << 10

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// Stream is the canonical streaming body: a lazy, finite sequence of byte
// chunks that can be consumed once. Copies of a Stream share one underlying
// source, so consuming any copy consumes them all. The zero Stream is empty.
//
// Stream is safe for concurrent use, although concurrent consumers will see
// interleaved chunks.
type Stream struct {
	src *source
}

type source struct {
	mu      sync.Mutex
	pull    func() ([]byte, error)
	release func() error
	err     error
}

func newStream(pull func() ([]byte, error), release func() error) Stream {
	return Stream{src: &source{pull: pull, release: release}}
}

// NewStream returns a Stream backed by seq. A non-nil error yielded by seq
// ends the stream with that error; the chunk yielded alongside it is dropped.
func NewStream(seq iter.Seq2[[]byte, error]) Stream {
	next, stop := iter.Pull2(seq)
	return newStream(func() ([]byte, error) {
		chunk, err, ok := next()
		switch {
		case !ok:
			return nil, io.EOF
		case err != nil:
			return nil, err
		}
		return chunk, nil
	}, func() error {
		stop()
		return nil
	})
}

// StreamOf returns a Stream that yields the given chunks in order.
func StreamOf(chunks ...[]byte) Stream {
	return newStream(func() ([]byte, error) {
		if len(chunks) == 0 {
			return nil, io.EOF
		}
		chunk := chunks[0]
		chunks = chunks[1:]
		return chunk, nil
	}, nil)
}

// StreamReader returns a Stream that reads r in chunks. If r is an
// io.Closer it is closed once the stream ends or is closed.
func StreamReader(r io.Reader) Stream {
	var release func() error
	if c, ok := r.(io.Closer); ok {
		release = c.Close
	}

	var pending error
	return newStream(func() ([]byte, error) {
		if pending != nil {
			return nil, pending
		}
		buf := make([]byte, streamChunkSize)
		for range maxEmptyReads {
			n, err := r.Read(buf)
			if n > 0 {
				pending = err
				return buf[:n], nil
			}
			if err != nil {
				return nil, err
			}
		}
		return nil, io.ErrNoProgress
	}, release)
}

// EmptyStream returns a Stream with no chunks.
func EmptyStream() Stream {
	return Stream{}
}

// FailedStream returns a Stream whose first read fails with err.
func FailedStream(err error) Stream {
	return newStream(func() ([]byte, error) { return nil, err }, nil)
}

// lazyStream returns a single-chunk Stream whose chunk is produced by fn on
// the first read.
func lazyStream(fn func() ([]byte, error)) Stream {
	done := false
	return newStream(func() ([]byte, error) {
		if done {
			return nil, io.EOF
		}
		done = true
		return fn()
	}, nil)
}

// tapStream forwards s and calls done once with the number of bytes read,
// when s ends, fails or is closed. done receives nil on a clean end.
func tapStream(s Stream, done func(n int64, err error)) Stream {
	var (
		n    int64
		once sync.Once
	)
	finish := func(err error) {
		once.Do(func() { done(n, err) })
	}
	return newStream(func() ([]byte, error) {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			finish(nil)
			return nil, err
		}
		if err != nil {
			finish(err)
			return nil, err
		}
		n += int64(len(chunk))
		return chunk, nil
	}, func() error {
		err := s.Close()
		finish(ErrStreamClosed)
		return err
	})
}

// Next returns the next chunk. At the end of the stream it returns io.EOF,
// and keeps returning it. A read error is returned on this and every
// subsequent call.
func (s Stream) Next() ([]byte, error) {
	if s.src == nil {
		return nil, io.EOF
	}
	return s.src.next()
}

func (src *source) next() ([]byte, error) {
	src.mu.Lock()
	defer src.mu.Unlock()

	if src.err != nil {
		return nil, src.err
	}
	chunk, err := src.pull()
	if err != nil {
		_ = src.finish(err)
		return nil, err
	}
	return chunk, nil
}

// finish must be called with mu held.
func (src *source) finish(err error) error {
	src.err = err
	src.pull = nil
	release := src.release
	src.release = nil
	if release != nil {
		return release()
	}
	return nil
}

// Close abandons the stream and releases its source. Reads after Close fail
// with ErrStreamClosed unless the stream had already ended.
func (s Stream) Close() error {
	if s.src == nil {
		return nil
	}
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	if s.src.err != nil {
		return nil
	}
	return s.src.finish(ErrStreamClosed)
}

// Collect reads the remaining chunks into one buffer. The context is checked
// between chunks; on cancellation the stream is closed.
func (s Stream) Collect(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	for {
		if err := ctx.Err(); err != nil {
			_ = s.Close()
			return nil, err
		}
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			if buf.Len() == 0 {
				return []byte{}, nil
			}
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
}

// drain reads and discards the remaining chunks.
func (s Stream) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			_ = s.Close()
			return err
		}
		if _, err := s.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// All returns an iterator over the remaining chunks. A read error is yielded
// once, after which iteration stops. Breaking out of the loop closes the
// stream.
func (s Stream) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			chunk, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				_ = s.Close()
				return
			}
		}
	}
}

// Reader adapts the stream to an io.ReadCloser.
func (s Stream) Reader() io.ReadCloser {
	return &streamReader{s: s}
}

type streamReader struct {
	s   Stream
	cur []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		chunk, err := r.s.Next()
		if err != nil {
			return 0, err
		}
		r.cur = chunk
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

func (r *streamReader) Close() error {
	return r.s.Close()
}

// IntoStream returns s itself.
func (s Stream) IntoStream() Stream {
	return s
}

// ReadStream takes ownership of src without reading from it.
func (s *Stream) ReadStream(_ context.Context, src Stream) error {
	*s = src
	return nil
}
