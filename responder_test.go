package httpkit_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
)

func okResponse(body string) *httpkit.Response[httpkit.Stream] {
	return &httpkit.Response[httpkit.Stream]{
		Status: http.StatusOK,
		Header: http.Header{},
		Body:   httpkit.StreamOf([]byte(body)),
	}
}

func TestPending_runs_once(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := httpkit.Defer(func(context.Context) (*httpkit.Response[httpkit.Stream], error) {
		calls.Add(1)
		return okResponse("once"), nil
	})
	assert.Equal(t, int32(0), calls.Load())

	first, err := p.Await(context.Background())
	require.NoError(t, err)
	second, err := p.Await(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPending_failures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := map[string]struct {
		pending *httpkit.Pending
		wantErr error
	}{
		"failed": {
			pending: httpkit.Failed(boom),
			wantErr: boom,
		},
		"panic becomes ErrPanic": {
			pending: httpkit.Defer(func(context.Context) (*httpkit.Response[httpkit.Stream], error) {
				panic("kaboom")
			}),
			wantErr: httpkit.ErrPanic,
		},
		"nil response": {
			pending: httpkit.Defer(func(context.Context) (*httpkit.Response[httpkit.Stream], error) {
				return nil, nil
			}),
			wantErr: httpkit.ErrNilResponse,
		},
		"nil typed response": {
			pending: (*httpkit.Response[httpkit.Text])(nil).IntoResponse(),
			wantErr: httpkit.ErrNilResponse,
		},
		"result with error": {
			pending: httpkit.Respond[httpkit.Text](nil, boom).IntoResponse(),
			wantErr: boom,
		},
		"fail": {
			pending: httpkit.Fail(boom).IntoResponse(),
			wantErr: boom,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, err := tc.pending.Await(context.Background())
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, resp)

			// The outcome is memoised.
			_, again := tc.pending.Await(context.Background())
			assert.Equal(t, err, again)
		})
	}
}

func TestPending_then(t *testing.T) {
	t.Parallel()

	t.Run("transforms success", func(t *testing.T) {
		t.Parallel()

		p := httpkit.Ready(okResponse("x")).Then(func(_ context.Context, resp *httpkit.Response[httpkit.Stream]) (*httpkit.Response[httpkit.Stream], error) {
			resp.Status = http.StatusAccepted
			return resp, nil
		})

		resp, err := p.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.Status)
	})

	t.Run("skips failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		called := false
		p := httpkit.Failed(boom).Then(func(_ context.Context, resp *httpkit.Response[httpkit.Stream]) (*httpkit.Response[httpkit.Stream], error) {
			called = true
			return resp, nil
		})

		_, err := p.Await(context.Background())
		require.ErrorIs(t, err, boom)
		assert.False(t, called)
	})
}

func TestPending_recover(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := httpkit.Failed(boom).Recover(func(_ context.Context, err error) httpkit.Responder {
		assert.ErrorIs(t, err, boom)
		return httpkit.NewResponseBuilder().Status(http.StatusTeapot).Body(httpkit.Text("recovered"))
	})

	resp, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)

	data, err := resp.Body.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(data))
}

func TestFuture_runs_on_await(t *testing.T) {
	t.Parallel()

	called := false
	var f httpkit.Future[httpkit.Text] = func(context.Context) (*httpkit.Response[httpkit.Text], error) {
		called = true
		return &httpkit.Response[httpkit.Text]{Status: http.StatusOK, Body: "later"}, nil
	}

	p := f.IntoResponse()
	assert.False(t, called)

	resp, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, resp.Header)

	data, err := resp.Body.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "later", string(data))
}

func TestSpawn(t *testing.T) {
	t.Parallel()

	t.Run("runs concurrently", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		f := httpkit.Spawn(context.Background(), func(context.Context) (*httpkit.Response[httpkit.Text], error) {
			close(started)
			return &httpkit.Response[httpkit.Text]{Status: http.StatusOK, Body: "spawned"}, nil
		})

		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("spawned function did not start before await")
		}

		resp, err := f.IntoResponse().Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
	})

	t.Run("panic becomes ErrPanic", func(t *testing.T) {
		t.Parallel()

		f := httpkit.Spawn(context.Background(), func(context.Context) (*httpkit.Response[httpkit.Text], error) {
			panic("kaboom")
		})

		_, err := f.IntoResponse().Await(context.Background())
		assert.ErrorIs(t, err, httpkit.ErrPanic)
	})

	t.Run("await gives up when context is done", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		f := httpkit.Spawn(context.Background(), func(context.Context) (*httpkit.Response[httpkit.Text], error) {
			<-release
			return nil, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.IntoResponse().Await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
