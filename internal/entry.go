// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/agents"
	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/briefing"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/ingest"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/oracle"
	"github.com/starford/ansuz/internal/router"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vault"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openVault creates the vault layout and returns the store.
func openVault(cfg *Config, logger *slog.Logger, opts ...vault.Option) (*vault.Store, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	opts = append([]vault.Option{
		vault.WithFolders(cfg.Vault.Folders),
		vault.WithLogger(logger),
	}, opts...)
	v := vault.New(fs, opts...)
	if err := v.Initialize(); err != nil {
		return nil, err
	}
	return v, nil
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("oracle_provider", cfg.Oracle.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(sse.DefaultReplay)
	defer broker.Close()

	v, err := openVault(cfg, logger, vault.WithDirectivesHook(broker.PublishDirectives))
	if err != nil {
		return err
	}

	// Initialize SQLite catalog and ledger.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, v.Provider(), v.Folders(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	o := app.oracle
	if o == nil {
		bounded, err := oracle.Open(ctx, cfg.Oracle.OracleSettings())
		if err != nil {
			return fmt.Errorf("init oracle: %w", err)
		}
		o = bounded
	}

	rt, err := buildRouter(cfg, v, o, db, logger)
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(api.Deps{
		Router:       rt,
		Ingest:       ingest.New(v, logger),
		Vault:        v,
		Usage:        db,
		Events:       broker,
		AllowedUsers: cfg.Access.AllowedUsers,
		Logger:       logger,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(cfg.App.HTTP.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.App.HTTP.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := v.Ping(); err != nil {
			logger.Warn("readiness probe failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the catalog in sync and announce note changes.
	g.Go(func() error {
		return index.Watch(gCtx, db, v.Provider(), v.Folders(), logger, broker.PublishNoteEvent)
	})

	if cfg.Briefing.Enabled {
		sched := briefing.New(v, db, o, cfg.Briefing.Hour, logger,
			briefing.WithReady(func(path string) {
				broker.Publish(sse.Event{Type: sse.BriefingReady, Data: map[string]string{"path": path}})
			}))
		g.Go(func() error {
			return sched.Run(gCtx)
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Shutdown only stops the listener; cancel the watcher and scheduler too.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// buildRouter registers every handler, each wrapped with the routing ledger.
func buildRouter(cfg *Config, v *vault.Store, o oracle.Oracle, ledger index.Ledger, logger *slog.Logger) (*router.Router, error) {
	handlers := []agent.Agent{
		agents.NewFiling(v, o, cfg.Vault.DefaultFolder, nil, logger),
		agents.NewVaultQuery(v, o, nil, logger),
		agents.NewVaultEdit(v, o, nil, logger),
		agents.NewMemory(v, logger),
	}
	for i, h := range handlers {
		handlers[i] = index.Track(h, ledger, logger)
	}
	reg, err := agent.NewRegistry(handlers...)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}
	rt, err := router.New(router.NewClassifier(o, cfg.Router.ClassifyTimeout), reg, cfg.Router.DefaultIntent, v, logger)
	if err != nil {
		return nil, fmt.Errorf("init router: %w", err)
	}
	return rt, nil
}

// RunMCP serves the vault tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("MCP server starting", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(v, app.version).ServeStdio()
}
