// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/daybook/internal/api"
	"github.com/starford/daybook/internal/identity"
	"github.com/starford/daybook/internal/mcpserver"
)

func (a *application) setup(opts []Option) (*Config, *slog.Logger, error) {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return a.config, logger, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	cfg, logger, err := (&application{}).setup(opts)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("jobs_mode", cfg.Planner.JobsMode),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("amqp", cfg.Events.AMQP.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := newStack(cfg, logger, true)
	if err != nil {
		return err
	}
	defer st.close()

	apiRouter := api.NewRouter(st.planner, st.dir)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := st.db.Conn().PingContext(req.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the data directory for buckets edited outside the server.
	if st.fs != nil {
		g.Go(func() error {
			err := st.fs.Watch(gCtx, logger, func(key string, removed bool) {
				st.planner.ExternalChange(gCtx, key, removed)
			})
			if err != nil {
				logger.Warn("data watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Live event streams never end on their own.
		st.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the tool server on stdin/stdout. Tools start as the
// configured owner; with sign-in enabled the client may switch identity.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, logger, err := (&application{}).setup(opts)
	if err != nil {
		return err
	}

	st, err := newStack(cfg, logger, false)
	if err != nil {
		return err
	}
	defer st.close()

	var signer identity.Signer
	if st.dir != nil {
		signer = st.dir
	}
	auth := identity.NewAuth(signer, &identity.Identity{ID: cfg.MCP.Owner, Method: identity.MethodLocal}, logger)
	srv := mcpserver.New(st.planner, auth, st.dir != nil, logger)

	logger.Info("MCP server starting", slog.String("owner", cfg.MCP.Owner))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// PrintWeek writes owner's week around date as indented JSON to w. kind is
// "notes" or "jobs".
func PrintWeek(ctx context.Context, w io.Writer, owner, date, kind string, opts ...Option) error {
	cfg, logger, err := (&application{}).setup(opts)
	if err != nil {
		return err
	}

	st, err := newStack(cfg, logger, false)
	if err != nil {
		return err
	}
	defer st.close()

	anchor, err := st.planner.ParseDay(date)
	if err != nil {
		return err
	}

	var week any
	switch kind {
	case "notes", "note":
		week, err = st.planner.NotesWeek(ctx, owner, anchor)
	case "", "jobs", "job":
		week, err = st.planner.JobsWeek(ctx, owner, anchor)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(week)
}
