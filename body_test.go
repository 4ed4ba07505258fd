package httpkit_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
)

type message struct {
	Message string `json:"message" xml:"message"`
}

func TestFromStream_text(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input   []byte
		want    httpkit.Text
		wantErr error
	}{
		"ascii": {
			input: []byte("some body"),
			want:  "some body",
		},
		"multi-byte utf-8": {
			input: []byte("héllo wörld"),
			want:  "héllo wörld",
		},
		"empty": {
			input: nil,
			want:  "",
		},
		"invalid utf-8 fails": {
			input:   []byte{0xff, 0xfe},
			wantErr: httpkit.ErrInvalidUTF8,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := httpkit.FromStream[httpkit.Text](context.Background(), httpkit.StreamOf(tc.input))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, err, httpkit.ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromStream_bytes_round_trip(t *testing.T) {
	t.Parallel()

	in := httpkit.Bytes{0x00, 0xff, 0x10}
	got, err := httpkit.FromStream[httpkit.Bytes](context.Background(), in.IntoStream())
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestFromStream_empty_drains(t *testing.T) {
	t.Parallel()

	s := httpkit.StreamOf([]byte("ignored"), []byte("also ignored"))
	_, err := httpkit.FromStream[httpkit.Empty](context.Background(), s)
	require.NoError(t, err)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFromStream_stream_takes_ownership(t *testing.T) {
	t.Parallel()

	s := httpkit.StreamOf([]byte("untouched"))
	got, err := httpkit.FromStream[httpkit.Stream](context.Background(), s)
	require.NoError(t, err)

	data, err := got.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(data))
}

func TestFromStream_propagates_stream_error(t *testing.T) {
	t.Parallel()

	_, err := httpkit.FromStream[httpkit.Bytes](context.Background(), httpkit.FailedStream(io.ErrUnexpectedEOF))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestJSON_body(t *testing.T) {
	t.Parallel()

	t.Run("decode", func(t *testing.T) {
		t.Parallel()

		got, err := httpkit.FromStream[httpkit.JSON[message]](context.Background(),
			httpkit.StreamOf([]byte(`{"message":`), []byte(`"hi"}`)))
		require.NoError(t, err)
		assert.Equal(t, "hi", got.Value.Message)
	})

	t.Run("encode", func(t *testing.T) {
		t.Parallel()

		data, err := httpkit.JSON[message]{Value: message{Message: "hi"}}.IntoStream().Collect(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, `{"message":"hi"}`, string(data))
	})

	t.Run("malformed input fails", func(t *testing.T) {
		t.Parallel()

		_, err := httpkit.FromStream[httpkit.JSON[message]](context.Background(), httpkit.StreamOf([]byte(`{"message":`)))
		assert.ErrorIs(t, err, httpkit.ErrDecode)
	})

	t.Run("empty input fails", func(t *testing.T) {
		t.Parallel()

		_, err := httpkit.FromStream[httpkit.JSON[message]](context.Background(), httpkit.EmptyStream())
		assert.ErrorIs(t, err, httpkit.ErrDecode)
	})

	t.Run("unencodable value fails on read", func(t *testing.T) {
		t.Parallel()

		_, err := httpkit.JSON[func()]{Value: func() {}}.IntoStream().Collect(context.Background())
		assert.Error(t, err)
	})
}

func TestXML_body(t *testing.T) {
	t.Parallel()

	data, err := httpkit.XML[message]{Value: message{Message: "hi"}}.IntoStream().Collect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, string(data), "<message><message>hi</message></message>")

	got, err := httpkit.FromStream[httpkit.XML[message]](context.Background(), httpkit.StreamOf(data))
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Value.Message)
}

func TestConvert(t *testing.T) {
	t.Parallel()

	got, err := httpkit.Convert[httpkit.JSON[message]](context.Background(), httpkit.Text(`{"message":"converted"}`))
	require.NoError(t, err)
	assert.Equal(t, "converted", got.Value.Message)

	_, err = httpkit.Convert[httpkit.Text](context.Background(), httpkit.Bytes{0xff})
	assert.ErrorIs(t, err, httpkit.ErrInvalidUTF8)
}
