package httpkittest_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
	"github.com/bjaus/httpkit/httpkittest"
)

type greeting struct {
	Hello string `json:"hello"`
}

func greet(_ context.Context, req *httpkit.Request[httpkit.Text], resp *httpkit.ResponseBuilder) httpkit.Responder {
	return resp.ContentType("application/json").Body(httpkit.JSON[greeting]{Value: greeting{Hello: string(req.Body)}})
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	h := httpkit.Box[httpkit.Text](httpkit.HandlerFunc[httpkit.Text](greet))

	res := httpkittest.Invoke(t, h, http.MethodPost, "/greet", "world")
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, greeting{Hello: "world"}, httpkittest.JSON[greeting](t, res))
}

func TestInvoke_failure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	h := httpkit.BoxFunc[httpkit.Empty](func(context.Context, *httpkit.Request[httpkit.Empty], *httpkit.ResponseBuilder) httpkit.Responder {
		return httpkit.Fail(boom)
	})

	res := httpkittest.Invoke(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, res.Body)
}

func TestInvokeRequest(t *testing.T) {
	t.Parallel()

	h := httpkit.BoxFunc[httpkit.Empty](func(_ context.Context, req *httpkit.Request[httpkit.Empty], resp *httpkit.ResponseBuilder) httpkit.Responder {
		return resp.Body(httpkit.Text(req.Header.Get("X-Name")))
	})

	req, err := httpkit.NewRequest(http.MethodGet, "/", httpkit.EmptyStream())
	require.NoError(t, err)
	req.Header.Set("X-Name", "gopher")

	res := httpkittest.InvokeRequest(t, h, req)
	assert.Equal(t, "gopher", res.Text())
}

func TestServe(t *testing.T) {
	t.Parallel()

	c := httpkittest.Serve[httpkit.Text](t, httpkit.HandlerFunc[httpkit.Text](greet))

	res := c.Post(t, "/greet", "text/plain", "socket")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, greeting{Hello: "socket"}, httpkittest.JSON[greeting](t, res))

	res = c.Do(t, http.MethodPut, "/greet", "header", http.Header{"X-Ignored": {"1"}})
	assert.Equal(t, greeting{Hello: "header"}, httpkittest.JSON[greeting](t, res))
}
