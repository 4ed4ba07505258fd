package httpkit_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
)

func TestSetValueGetValue_roundTrip(t *testing.T) {
	t.Parallel()

	type userID string

	ctx := httpkit.SetValue[userID](context.Background(), "user-123")

	val, ok := httpkit.GetValue[userID](ctx)
	assert.True(t, ok)
	assert.Equal(t, userID("user-123"), val)
}

func TestGetValue_missing_returns_false(t *testing.T) {
	t.Parallel()

	val, ok := httpkit.GetValue[string](context.Background())
	assert.False(t, ok)
	assert.Equal(t, "", val)

	n, ok := httpkit.GetValue[int](context.Background())
	assert.False(t, ok)
	assert.Equal(t, 0, n)
}

func TestSetValueGetValue_different_types_no_collision(t *testing.T) {
	t.Parallel()

	type tenantID string
	type requestID string

	ctx := context.Background()
	ctx = httpkit.SetValue[string](ctx, "hello")
	ctx = httpkit.SetValue[int](ctx, 42)
	ctx = httpkit.SetValue[tenantID](ctx, "tenant-1")
	ctx = httpkit.SetValue[requestID](ctx, "req-abc")

	strVal, ok := httpkit.GetValue[string](ctx)
	assert.True(t, ok)
	assert.Equal(t, "hello", strVal)

	intVal, ok := httpkit.GetValue[int](ctx)
	assert.True(t, ok)
	assert.Equal(t, 42, intVal)

	tenant, ok := httpkit.GetValue[tenantID](ctx)
	assert.True(t, ok)
	assert.Equal(t, tenantID("tenant-1"), tenant)

	reqID, ok := httpkit.GetValue[requestID](ctx)
	assert.True(t, ok)
	assert.Equal(t, requestID("req-abc"), reqID)
}

func TestWithValue_in_middleware(t *testing.T) {
	t.Parallel()

	type userCtx struct {
		Name string
		Role string
	}

	var (
		captured userCtx
		found    bool
	)
	h := httpkit.WithValue(userCtx{Name: "Alice", Role: "admin"})(
		httpkit.BoxFunc[httpkit.Empty](func(ctx context.Context, _ *httpkit.Request[httpkit.Empty], resp *httpkit.ResponseBuilder) httpkit.Responder {
			captured, found = httpkit.GetValue[userCtx](ctx)
			return resp.Empty()
		}))

	res := invokeWith(t, h, http.MethodGet, "/", "", nil)
	require.NoError(t, res.Err)
	assert.True(t, found)
	assert.Equal(t, userCtx{Name: "Alice", Role: "admin"}, captured)
}
