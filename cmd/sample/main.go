// Command sample serves a small API with both httpkit backends.
//
// Run:
//
//	go run ./cmd/sample                              # streaming backend on :8080
//	go run ./cmd/sample --backend both               # plus the worker pool on :8081
//	go run ./cmd/sample --config sample.yaml         # load settings from YAML
//
// Settings may also come from HTTPKIT_* environment variables or a .env file
// in the working directory.
//
// Then explore:
//
//	GET    http://localhost:8080/v1/health       # health check
//	GET    http://localhost:8080/v1/users        # list users
//	POST   http://localhost:8080/v1/users        # create user
//	GET    http://localhost:8080/v1/users/{id}   # get user
//	DELETE http://localhost:8080/v1/users/{id}   # delete user
//	POST   http://localhost:8080/v1/echo         # echo a text body
//	GET    http://localhost:8080/v1/events       # SSE event stream
//	GET    http://localhost:8080/metrics         # Prometheus metrics
//	GET    http://localhost:8080/                # static files (--static-dir)
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/bjaus/httpkit"
	"github.com/bjaus/httpkit/servers/nethttp"
	"github.com/bjaus/httpkit/servers/pooled"
)

// CLI is the command line interface of the sample server. Zero values leave
// the configured value untouched.
type CLI struct {
	Config     string `help:"Path to a YAML configuration file." type:"path"`
	Backend    string `help:"Backend to run: nethttp, pooled or both."`
	Addr       string `help:"Listen address of the streaming backend."`
	PooledAddr string `help:"Listen address of the worker-pool backend."`
	Workers    int    `help:"Worker pool size of the pooled backend."`
	StaticDir  string `help:"Directory served at /." type:"path"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
}

func (c *CLI) apply(cfg *Config) {
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.Addr != "" {
		cfg.NetHTTP.Addr = c.Addr
	}
	if c.PooledAddr != "" {
		cfg.Pooled.Addr = c.PooledAddr
	}
	if c.Workers > 0 {
		cfg.Pooled.Workers = c.Workers
	}
	if c.StaticDir != "" {
		cfg.StaticDir = c.StaticDir
	}
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("sample"),
		kong.Description("Sample API served by httpkit."),
		kong.UsageOnError(),
		kong.DefaultEnvars("HTTPKIT"),
	)

	logger := newLogger(colorable.NewColorable(os.Stderr), isatty.IsTerminal(os.Stderr.Fd()), cli.Log.Level)
	slog.SetDefault(logger)

	cfg, err := LoadConfig(cli.Config, &cli)
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(w io.Writer, isTTY bool, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    !isTTY,
		TimeFormat: "2006-01-02 15:04:05.000",
	}))
}

// server is what both backends have in common.
type server interface {
	Run() error
	Shutdown(ctx context.Context) error
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	var servers []server
	if cfg.runs(backendNetHTTP) {
		srv, err := nethttp.New[httpkit.Stream](cfg.NetHTTP.Addr, app,
			nethttp.WithLogger(logger),
			nethttp.WithReadHeaderTimeout(cfg.NetHTTP.ReadHeaderTimeout),
		)
		if err != nil {
			return fmt.Errorf("start nethttp backend: %w", err)
		}
		logger.Info("starting server", "backend", backendNetHTTP, "addr", srv.Addr().String())
		servers = append(servers, srv)
	}
	if cfg.runs(backendPooled) {
		srv, err := pooled.New[httpkit.Stream](cfg.Pooled.Addr, app,
			pooled.WithLogger(logger),
			pooled.WithWorkers(cfg.Pooled.Workers),
			pooled.WithMaxBodySize(cfg.Pooled.MaxBodySize),
		)
		if err != nil {
			for _, started := range servers {
				_ = started.Shutdown(ctx)
			}
			return fmt.Errorf("start pooled backend: %w", err)
		}
		logger.Info("starting server", "backend", backendPooled, "addr", srv.Addr().String(), "workers", srv.Workers())
		servers = append(servers, srv)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(srv.Run)
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
