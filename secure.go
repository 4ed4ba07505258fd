package httpkit

import (
	"context"
	"fmt"
	"net/http"
	"slices"
)

// SecureConfig configures the Secure headers middleware. A zero field leaves
// its header unset.
type SecureConfig struct {
	ContentTypeNosniff bool   // X-Content-Type-Options: nosniff
	FrameDeny          bool   // X-Frame-Options: DENY
	HSTSMaxAge         int    // seconds; Strict-Transport-Security when > 0
	HSTSSubdomains     bool   // adds includeSubDomains to HSTS
	XSSProtection      string // X-XSS-Protection
	ReferrerPolicy     string // Referrer-Policy
	ContentPolicy      string // Content-Security-Policy
}

// DefaultSecureConfig is used by Secure when called without a config.
var DefaultSecureConfig = SecureConfig{
	ContentTypeNosniff: true,
	FrameDeny:          true,
	XSSProtection:      "1; mode=block",
	ReferrerPolicy:     "strict-origin-when-cross-origin",
}

// headers renders c once.
func (c SecureConfig) headers() http.Header {
	h := make(http.Header)
	if c.ContentTypeNosniff {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	if c.FrameDeny {
		h.Set("X-Frame-Options", "DENY")
	}
	if c.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", c.HSTSMaxAge)
		if c.HSTSSubdomains {
			hsts += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", hsts)
	}
	if c.XSSProtection != "" {
		h.Set("X-XSS-Protection", c.XSSProtection)
	}
	if c.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", c.ReferrerPolicy)
	}
	if c.ContentPolicy != "" {
		h.Set("Content-Security-Policy", c.ContentPolicy)
	}
	return h
}

// Secure returns middleware that sets security headers on every response,
// including responses built by inner middleware such as Recovery.
func Secure(cfg ...SecureConfig) Middleware {
	c := DefaultSecureConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}
	set := c.headers()

	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			return withHeaders(resolve(next.Handle(ctx, req, resp)), func(h http.Header) {
				for key, values := range set {
					h[key] = slices.Clone(values)
				}
			})
		})
	}
}
