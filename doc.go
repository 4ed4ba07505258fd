// Package httpkit is a backend-agnostic HTTP handler toolkit. Handlers are
// written once against typed request and response bodies and served by any
// engine in the servers directory.
//
// A handler receives a request whose body has already been materialized as
// a Go type, and a builder for the response:
//
//	type Handler[B Body] interface {
//	    Handle(ctx context.Context, req *Request[B], resp *ResponseBuilder) Responder
//	}
//
// Bodies convert to and from Stream, a lazy single-use sequence of byte
// chunks. Empty, Bytes, Text, JSON, XML and Stream itself are provided:
//
//	echo := httpkit.HandlerFunc[httpkit.Text](
//	    func(_ context.Context, req *httpkit.Request[httpkit.Text], resp *httpkit.ResponseBuilder) httpkit.Responder {
//	        return resp.ContentType("text/plain").Body(req.Body)
//	    })
//
// Box erases the body type so handlers with different bodies can share a
// Router, and Router dispatches on the longest registered path prefix:
//
//	r := httpkit.NewRouter(httpkit.WithMiddleware(httpkit.Recovery()))
//	httpkit.Handle[httpkit.Text](r, "/echo", echo)
//	httpkit.HandleFunc[httpkit.JSON[Greeting]](r, "/greet", greet)
//
// Middleware has the signature func(Handler[Stream]) Handler[Stream] and
// sees every request before its body is decoded.
//
// Responses are produced through Responder. A handler may return a built
// response, a Result that carries a build error, a Future that is computed
// when awaited, or a Pending composed with Then and Recover. Backends await
// the outcome and write it; any failure becomes an empty 500.
package httpkit
