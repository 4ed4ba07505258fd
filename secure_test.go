package httpkit_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/httpkit"
)

func TestSecure(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg        []httpkit.SecureConfig
		wantHeader map[string]string
		wantAbsent []string
	}{
		"defaults": {
			wantHeader: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "DENY",
				"X-XSS-Protection":       "1; mode=block",
				"Referrer-Policy":        "strict-origin-when-cross-origin",
			},
			wantAbsent: []string{"Strict-Transport-Security"},
		},
		"hsts enabled": {
			cfg: []httpkit.SecureConfig{{
				HSTSMaxAge: 31536000,
			}},
			wantHeader: map[string]string{
				"Strict-Transport-Security": "max-age=31536000",
			},
			wantAbsent: []string{"X-Content-Type-Options", "X-Frame-Options", "X-XSS-Protection", "Referrer-Policy"},
		},
		"hsts with subdomains and csp": {
			cfg: []httpkit.SecureConfig{{
				HSTSMaxAge:     600,
				HSTSSubdomains: true,
				ContentPolicy:  "default-src 'self'",
			}},
			wantHeader: map[string]string{
				"Strict-Transport-Security": "max-age=600; includeSubDomains",
				"Content-Security-Policy":   "default-src 'self'",
			},
		},
		"subdomains ignored without max age": {
			cfg: []httpkit.SecureConfig{{
				HSTSSubdomains: true,
			}},
			wantAbsent: []string{"Strict-Transport-Security"},
		},
		"custom values": {
			cfg: []httpkit.SecureConfig{{
				ContentTypeNosniff: true,
				XSSProtection:      "0",
				ReferrerPolicy:     "no-referrer",
			}},
			wantHeader: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-XSS-Protection":       "0",
				"Referrer-Policy":        "no-referrer",
			},
			wantAbsent: []string{"X-Frame-Options"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := httpkit.Secure(tc.cfg...)(textHandler("ok"))
			res := invokeWith(t, h, http.MethodGet, "/", "", nil)
			require.NoError(t, res.Err)

			assert.Equal(t, http.StatusOK, res.Status)
			for header, want := range tc.wantHeader {
				assert.Equal(t, want, res.Header.Get(header), "header %s", header)
			}
			for _, header := range tc.wantAbsent {
				assert.Empty(t, res.Header.Get(header), "header %s", header)
			}
		})
	}
}

func TestSecure_applies_to_fresh_builder_responses(t *testing.T) {
	t.Parallel()

	// Recovery answers with its own builder; the headers must still land.
	h := httpkit.Chain(httpkit.HandlerFunc[httpkit.Stream](panicHandler),
		httpkit.Secure(),
		httpkit.Recovery(),
	)

	res := invokeWith(t, h, http.MethodGet, "/", "", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
}
