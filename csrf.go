package httpkit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	TokenLength int    // default: 32
	CookieName  string // default: "_csrf"
	HeaderName  string // default: "X-CSRF-Token"
	Secure      bool   // cookie secure flag
	SameSite    http.SameSite
}

type csrfToken string

// CSRF returns middleware that implements double-submit cookie CSRF
// protection. Safe methods (GET, HEAD, OPTIONS) are not checked.
func CSRF(cfg ...CSRFConfig) Middleware {
	c := CSRFConfig{
		TokenLength: 32,
		CookieName:  "_csrf",
		HeaderName:  "X-CSRF-Token",
		SameSite:    http.SameSiteLaxMode,
	}
	if len(cfg) > 0 {
		if cfg[0].TokenLength > 0 {
			c.TokenLength = cfg[0].TokenLength
		}
		if cfg[0].CookieName != "" {
			c.CookieName = cfg[0].CookieName
		}
		if cfg[0].HeaderName != "" {
			c.HeaderName = cfg[0].HeaderName
		}
		c.Secure = cfg[0].Secure
		if cfg[0].SameSite != 0 {
			c.SameSite = cfg[0].SameSite
		}
	}

	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			var token string
			if cookie, err := req.Cookie(c.CookieName); err == nil {
				token = cookie.Value
			}

			var setCookie string
			if token == "" {
				token = generateCSRFToken(c.TokenLength)
				setCookie = (&http.Cookie{
					Name:     c.CookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   c.Secure,
					SameSite: c.SameSite,
				}).String()
			}

			var p *Pending
			if !isSafeMethod(req.Method) {
				if got := req.Header.Get(c.HeaderName); got == "" || got != token {
					_ = req.Body.Close()
					p = resolve(NewResponseBuilder().
						Status(http.StatusForbidden).
						ContentType("text/plain; charset=utf-8").
						Body(Text("CSRF token mismatch")))
				}
			}
			if p == nil {
				p = resolve(next.Handle(SetValue(ctx, csrfToken(token)), req, resp))
			}

			if setCookie == "" {
				return p
			}
			return withHeaders(p, func(h http.Header) {
				h.Add("Set-Cookie", setCookie)
			})
		})
	}
}

// GetCSRFToken returns the CSRF token stored by the CSRF middleware.
func GetCSRFToken(ctx context.Context) string {
	token, _ := GetValue[csrfToken](ctx)
	return string(token)
}

func generateCSRFToken(length int) string {
	b := make([]byte, length)
	//nolint:errcheck,gosec // crypto/rand.Read always returns nil error
	rand.Read(b)
	return hex.EncodeToString(b)
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
