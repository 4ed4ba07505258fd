package httpkit_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
)

func parseSetCookie(t *testing.T, header http.Header) *http.Cookie {
	t.Helper()
	cookies := (&http.Response{Header: header}).Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestCSRF_safe_methods_pass_without_token(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			h := httpkit.CSRF()(textHandler("ok"))
			res := invokeWith(t, h, method, "/", "", nil)
			require.NoError(t, res.Err)
			assert.Equal(t, http.StatusOK, res.Status)
		})
	}
}

func TestCSRF_unsafe_methods_require_matching_token(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		header     map[string]string
		wantStatus int
	}{
		"no cookie and no header": {
			wantStatus: http.StatusForbidden,
		},
		"cookie without header": {
			header:     map[string]string{"Cookie": "_csrf=abc"},
			wantStatus: http.StatusForbidden,
		},
		"mismatched header": {
			header:     map[string]string{"Cookie": "_csrf=abc", "X-CSRF-Token": "xyz"},
			wantStatus: http.StatusForbidden,
		},
		"matching header": {
			header:     map[string]string{"Cookie": "_csrf=abc", "X-CSRF-Token": "abc"},
			wantStatus: http.StatusOK,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := httpkit.CSRF()(textHandler("ok"))
			res := invokeWith(t, h, http.MethodPost, "/", "payload", tc.header)
			require.NoError(t, res.Err)
			assert.Equal(t, tc.wantStatus, res.Status)
			if tc.wantStatus == http.StatusForbidden {
				assert.Equal(t, "CSRF token mismatch", res.Text())
			}
		})
	}
}

func TestCSRF_sets_cookie_on_first_request(t *testing.T) {
	t.Parallel()

	var seen string
	h := httpkit.CSRF()(httpkit.BoxFunc[httpkit.Empty](func(ctx context.Context, _ *httpkit.Request[httpkit.Empty], resp *httpkit.ResponseBuilder) httpkit.Responder {
		seen = httpkit.GetCSRFToken(ctx)
		return resp.Empty()
	}))

	res := invokeWith(t, h, http.MethodGet, "/", "", nil)
	require.NoError(t, res.Err)

	cookie := parseSetCookie(t, res.Header)
	assert.Equal(t, "_csrf", cookie.Name)
	assert.Len(t, cookie.Value, 64)
	assert.Equal(t, seen, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	// A returning client keeps its token and gets no new cookie.
	res = invokeWith(t, h, http.MethodGet, "/", "", map[string]string{"Cookie": "_csrf=" + cookie.Value})
	require.NoError(t, res.Err)
	assert.Empty(t, res.Header.Values("Set-Cookie"))
	assert.Equal(t, cookie.Value, seen)
}

func TestGetCSRFToken_returns_empty_without_middleware(t *testing.T) {
	t.Parallel()

	assert.Empty(t, httpkit.GetCSRFToken(context.Background()))
}

func TestCSRF_custom_config(t *testing.T) {
	t.Parallel()

	h := httpkit.CSRF(httpkit.CSRFConfig{
		TokenLength: 8,
		CookieName:  "xsrf",
		HeaderName:  "X-XSRF",
		Secure:      true,
		SameSite:    http.SameSiteStrictMode,
	})(textHandler("ok"))

	res := invokeWith(t, h, http.MethodGet, "/", "", nil)
	require.NoError(t, res.Err)

	cookie := parseSetCookie(t, res.Header)
	assert.Equal(t, "xsrf", cookie.Name)
	assert.Len(t, cookie.Value, 16)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	res = invokeWith(t, h, http.MethodDelete, "/", "", map[string]string{
		"Cookie": "xsrf=" + cookie.Value,
		"X-XSRF": cookie.Value,
	})
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.Status)

	res = invokeWith(t, h, http.MethodDelete, "/", "", map[string]string{
		"Cookie":       "xsrf=" + cookie.Value,
		"X-CSRF-Token": cookie.Value,
	})
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain"))
}
