package httpkit

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const notFoundBody = "404 - not found"

// StaticFiles serves the files under root. The request path, with its
// leading slash removed, is resolved against root; paths that resolve
// outside root (through ".." or symlinks) are treated as missing. Every
// failure to find, open or stat a file yields 404.
func StaticFiles(root string) (Handler[Empty], error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static root %q: not a directory", root)
	}

	return HandlerFunc[Empty](func(_ context.Context, req *Request[Empty], resp *ResponseBuilder) Responder {
		name, err := matchFile(resolved, req.Path())
		if err != nil {
			return fileNotFound(resp)
		}
		return serveFile(resp, name)
	}), nil
}

// StaticFile serves the file at name for every request.
func StaticFile(name string) Handler[Empty] {
	return HandlerFunc[Empty](func(_ context.Context, _ *Request[Empty], resp *ResponseBuilder) Responder {
		return serveFile(resp, name)
	})
}

// StaticFS serves files from fsys. Paths are cleaned before lookup and
// fs.FS never resolves names outside itself.
func StaticFS(fsys fs.FS) Handler[Empty] {
	return HandlerFunc[Empty](func(_ context.Context, req *Request[Empty], resp *ResponseBuilder) Responder {
		name := strings.TrimPrefix(path.Clean("/"+req.Path()), "/")
		if name == "" || !fs.ValidPath(name) {
			return fileNotFound(resp)
		}
		f, err := fsys.Open(name)
		if err != nil {
			return fileNotFound(resp)
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			_ = f.Close()
			return fileNotFound(resp)
		}
		return resp.ContentType(contentTypeOf(name)).Body(StreamReader(f))
	})
}

// StripPrefix returns middleware that removes prefix from the request path
// before calling the handler. Requests without the prefix get 404.
func StripPrefix(prefix string) Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			rest, ok := strings.CutPrefix(req.Path(), prefix)
			if !ok {
				return resp.Status(http.StatusNotFound).Empty()
			}
			stripped := WithBody(req, req.Body)
			u := url.URL{}
			if req.URL != nil {
				u = *req.URL
			}
			u.Path = rest
			u.RawPath = ""
			stripped.URL = &u
			return next.Handle(ctx, stripped, resp)
		})
	}
}

// matchFile resolves reqPath against root and checks the result stays there.
// root must already be absolute and symlink-free.
func matchFile(root, reqPath string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(reqPath, "/"))
	resolved, err := filepath.EvalSymlinks(filepath.Join(root, rel))
	if err != nil {
		return "", err
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if resolved != root && !strings.HasPrefix(resolved, prefix) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, reqPath)
	}
	return resolved, nil
}

func serveFile(resp *ResponseBuilder, name string) Responder {
	f, err := os.Open(name)
	if err != nil {
		return fileNotFound(resp)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return fileNotFound(resp)
	}
	return resp.ContentType(contentTypeOf(name)).Body(StreamReader(f))
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func fileNotFound(resp *ResponseBuilder) Responder {
	return resp.Status(http.StatusNotFound).
		ContentType("text/plain; charset=utf-8").
		Body(Text(notFoundBody))
}
