package httpkit

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Registrar is implemented by Router and Group.
type Registrar interface {
	Register(pattern string, h Handler[Stream])
}

// Router dispatches each request to the handler registered under the longest
// pattern that prefixes the request path. Matching is on raw string
// prefixes, so "/api" also matches "/apix". Router is itself a
// Handler[Stream] and can be handed to any server.
type Router struct {
	routes     []route
	middleware []Middleware
	notFound   Handler[Stream]

	mu sync.RWMutex
}

type route struct {
	pattern string
	handler Handler[Stream]
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithNotFound sets the handler used when no pattern matches. The default
// responds 404 with an empty body.
func WithNotFound(h Handler[Stream]) RouterOption {
	return func(r *Router) {
		r.notFound = h
	}
}

// WithMiddleware adds middleware that wraps every request, including misses.
func WithMiddleware(mw ...Middleware) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router with the given options.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		notFound: HandlerFunc[Stream](notFound),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func notFound(_ context.Context, _ *Request[Stream], resp *ResponseBuilder) Responder {
	return resp.Status(http.StatusNotFound).Empty()
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.middleware = append(r.middleware, mw...)
}

// Register adds h under pattern. Registering the same pattern twice is a
// programming error and panics.
func (r *Router) Register(pattern string, h Handler[Stream]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, found := slices.BinarySearchFunc(r.routes, pattern, func(rt route, p string) int {
		return comparePatterns(rt.pattern, p)
	})
	if found {
		panic(fmt.Errorf("%w: %q", ErrDuplicatePath, pattern))
	}
	r.routes = slices.Insert(r.routes, i, route{pattern: pattern, handler: h})
}

// comparePatterns orders longer patterns first and equal lengths
// lexicographically.
func comparePatterns(a, b string) int {
	if c := cmp.Compare(len(b), len(a)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Match returns the handler registered under the longest pattern that
// prefixes path.
func (r *Router) Match(path string) (Handler[Stream], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if strings.HasPrefix(path, rt.pattern) {
			return rt.handler, true
		}
	}
	return nil, false
}

// Patterns returns the registered patterns in match order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := make([]string, len(r.routes))
	for i, rt := range r.routes {
		patterns[i] = rt.pattern
	}
	return patterns
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
	r.mu.RLock()
	mw := r.middleware
	r.mu.RUnlock()

	return Chain(HandlerFunc[Stream](r.dispatch), mw...).Handle(ctx, req, resp)
}

func (r *Router) dispatch(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
	h, ok := r.Match(req.Path())
	if !ok {
		h = r.notFound
	}
	return h.Handle(ctx, req, resp)
}

// Handle boxes h and registers it under pattern.
func Handle[B Body, P BodyPointer[B]](reg Registrar, pattern string, h Handler[B]) {
	reg.Register(pattern, Box[B, P](h))
}

// HandleFunc boxes fn and registers it under pattern.
func HandleFunc[B Body, P BodyPointer[B]](
	reg Registrar,
	pattern string,
	fn func(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder,
) {
	reg.Register(pattern, BoxFunc[B, P](fn))
}

// Group registers routes under a shared prefix with shared middleware.
type Group struct {
	parent     Registrar
	prefix     string
	middleware []Middleware
}

// Group creates a new route group with the given prefix and middleware.
func (r *Router) Group(prefix string, mw ...Middleware) *Group {
	return &Group{parent: r, prefix: prefix, middleware: mw}
}

// Group creates a nested group. Its middleware runs inside g's.
func (g *Group) Group(prefix string, mw ...Middleware) *Group {
	return &Group{parent: g, prefix: prefix, middleware: mw}
}

// Register adds h under the group prefix joined with pattern.
func (g *Group) Register(pattern string, h Handler[Stream]) {
	g.parent.Register(g.prefix+pattern, Chain(h, g.middleware...))
}
