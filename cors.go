package httpkit

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists accepted origins. "*" accepts any origin.
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// DefaultCORSConfig is used by CORS when called without a config.
var DefaultCORSConfig = CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	AllowHeaders: []string{"Content-Type", "Authorization"},
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when origin is not accepted. Credentialed responses never use "*".
func (c *CORSConfig) allowOrigin(origin string) string {
	if slices.Contains(c.AllowOrigins, "*") {
		if c.AllowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin != "" && slices.Contains(c.AllowOrigins, origin) {
		return origin
	}
	return ""
}

// CORS returns middleware that handles Cross-Origin Resource Sharing.
// Preflight OPTIONS requests are answered with 204 and never reach the
// handler. Requests from origins that are not allowed get no CORS headers.
func CORS(cfg ...CORSConfig) Middleware {
	c := DefaultCORSConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}

	methods := strings.Join(c.AllowMethods, ", ")
	headers := strings.Join(c.AllowHeaders, ", ")
	expose := strings.Join(c.ExposeHeaders, ", ")

	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			origin := c.allowOrigin(req.Header.Get("Origin"))
			preflight := req.Method == http.MethodOptions

			apply := func(h http.Header) {
				h.Add("Vary", "Origin")
				if origin == "" {
					return
				}
				h.Set("Access-Control-Allow-Origin", origin)
				if c.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if expose != "" {
					h.Set("Access-Control-Expose-Headers", expose)
				}
				if !preflight {
					return
				}
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if c.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
				}
			}

			if preflight {
				_ = req.Body.Close()
				return withHeaders(resolve(resp.Status(http.StatusNoContent).Empty()), apply)
			}
			return withHeaders(resolve(next.Handle(ctx, req, resp)), apply)
		})
	}
}
