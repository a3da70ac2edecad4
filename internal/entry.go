// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/halvard/tally/internal/api"
	"github.com/halvard/tally/internal/dispatch"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/linkscache"
	"github.com/halvard/tally/internal/spool"
	"github.com/halvard/tally/internal/stats"
	"github.com/halvard/tally/internal/statsvc"
	"github.com/halvard/tally/internal/uploadercache"
)

// Refs derives the three aggregate document refs from configuration.
func Refs(cfg *Config) statsvc.Refs {
	db := cfg.Store.Database
	return statsvc.Refs{
		Stats:     docstore.Ref{Database: db, Collection: cfg.Documents.StatsCollection, Document: cfg.Documents.StatsDocument},
		Links:     docstore.Ref{Database: db, Collection: cfg.Documents.CacheCollection, Document: cfg.Documents.LinksDocument},
		Uploaders: docstore.Ref{Database: db, Collection: cfg.Documents.CacheCollection, Document: cfg.Documents.UploadersDocument},
	}
}

// BuildStore creates the configured store backend and provisions the
// aggregate documents on backends this process owns. The returned closer
// may be nil.
func BuildStore(ctx context.Context, cfg *Config) (docstore.Provider, func() error, error) {
	refs := Refs(cfg)

	switch cfg.Store.Driver {
	case StoreDriverHTTP:
		// Documents are provisioned in the remote backend, not here.
		return docstore.NewHTTP(cfg.Store.HTTP.Endpoint, cfg.Store.HTTP.Project, cfg.Store.HTTP.Key), nil, nil

	case StoreDriverSQLite:
		s, err := docstore.OpenSQLite(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		for _, ref := range []docstore.Ref{refs.Stats, refs.Links, refs.Uploaders} {
			if err := s.Provision(ctx, ref); err != nil {
				s.Close()
				return nil, nil, err
			}
		}
		return s, s.Close, nil

	case StoreDriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		s := docstore.NewRedis(rdb, cfg.Store.Redis.Prefix)
		for _, ref := range []docstore.Ref{refs.Stats, refs.Links, refs.Uploaders} {
			if err := s.Provision(ctx, ref); err != nil {
				rdb.Close()
				return nil, nil, err
			}
		}
		return s, rdb.Close, nil

	case StoreDriverMemory:
		m := docstore.NewMemory()
		for _, ref := range []docstore.Ref{refs.Stats, refs.Links, refs.Uploaders} {
			m.Seed(ref, "")
		}
		return m, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("database", cfg.Store.Database),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize document store.
	store := app.store
	if store == nil {
		var closer func() error
		var err error
		store, closer, err = BuildStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		if closer != nil {
			defer closer() //nolint:errcheck // best-effort on shutdown
		}
	}

	refs := Refs(cfg)

	// Wire the three update tasks behind one dispatcher.
	cols := stats.Collections{
		Notes:   cfg.Tracked.Notes,
		Forms:   cfg.Tracked.Forms,
		YouTube: cfg.Tracked.YouTube,
	}
	dispatcher := dispatch.New(logger,
		stats.New(store, refs.Stats, cols),
		linkscache.New(store, refs.Links),
		uploadercache.New(store, refs.Uploaders, cfg.Tracked.Notes),
	)

	svc := statsvc.NewService(store, refs)
	apiRouter := api.NewRouter(dispatcher, svc, api.RouterOptions{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		AuthToken:   cfg.Auth.Token,
		RateRPS:     cfg.App.RateLimit.RPS,
		RateBurst:   cfg.App.RateLimit.Burst,
	})

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start spool ingestion when configured.
	if cfg.Spool.Path != "" {
		if err := os.MkdirAll(cfg.Spool.Path, 0o755); err != nil {
			return fmt.Errorf("create spool dir: %w", err)
		}
		g.Go(func() error {
			if err := spool.Watch(gCtx, cfg.Spool.Path, dispatcher, logger); err != nil {
				return fmt.Errorf("spool watcher error: %w", err)
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
