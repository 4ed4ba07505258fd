package httpkit

import (
	"context"
	"net/http"
	"strings"
)

// Redirect returns a responder that redirects to target with code.
func Redirect(resp *ResponseBuilder, target string, code int) Responder {
	return resp.Status(code).SetHeader("Location", target).Empty()
}

// HTTPSRedirect returns middleware that redirects plain HTTP requests to
// HTTPS. Requests forwarded with X-Forwarded-Proto: https pass through.
func HTTPSRedirect() Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			if (req.URL != nil && req.URL.Scheme == "https") || req.Header.Get("X-Forwarded-Proto") == "https" {
				return next.Handle(ctx, req, resp)
			}
			return Redirect(resp, "https://"+req.Host+requestURI(req), http.StatusMovedPermanently)
		})
	}
}

// TrailingSlash returns middleware that strips trailing slashes and redirects.
func TrailingSlash() Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			p := req.Path()
			if p == "/" || !strings.HasSuffix(p, "/") {
				return next.Handle(ctx, req, resp)
			}
			target := strings.TrimRight(p, "/")
			if target == "" {
				target = "/"
			}
			if q := req.URL.RawQuery; q != "" {
				target += "?" + q
			}
			return Redirect(resp, target, http.StatusMovedPermanently)
		})
	}
}

// NonWWWRedirect returns middleware that redirects the www subdomain to the
// bare host.
func NonWWWRedirect() Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			if !strings.HasPrefix(req.Host, "www.") {
				return next.Handle(ctx, req, resp)
			}
			scheme := "http"
			if req.URL != nil && req.URL.Scheme != "" {
				scheme = req.URL.Scheme
			} else if req.Header.Get("X-Forwarded-Proto") == "https" {
				scheme = "https"
			}
			target := scheme + "://" + strings.TrimPrefix(req.Host, "www.") + requestURI(req)
			return Redirect(resp, target, http.StatusMovedPermanently)
		})
	}
}

func requestURI(req *Request[Stream]) string {
	if req.URL == nil {
		return "/"
	}
	return req.URL.RequestURI()
}
