package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-paths/internal/api"
	"github.com/p-n-ai/pai-paths/internal/curriculum"
	"github.com/p-n-ai/pai-paths/internal/learning"
	"github.com/p-n-ai/pai-paths/internal/platform/cache"
	"github.com/p-n-ai/pai-paths/internal/platform/config"
	"github.com/p-n-ai/pai-paths/internal/platform/database"
	"github.com/p-n-ai/pai-paths/internal/platform/logging"
	"github.com/p-n-ai/pai-paths/internal/realtime"
)

// readinessCheck reports whether a dependency can serve traffic.
type readinessCheck func(ctx context.Context) error

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	checks := map[string]readinessCheck{}
	hub := realtime.NewHub(0)
	defer hub.Close()
	sinks := learning.FanoutEventLogger{hub}

	var store learning.Store
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
		}
		pgStore, err := learning.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		store = pgStore
		checks["database"] = db.HealthCheck
		if cfg.Store.Events {
			sinks = append(sinks, learning.NewPostgresEventLogger(db.Pool))
		}
	case config.StoreRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		defer c.Close()
		redisStore, err := learning.NewRedisStore(c.Client, cfg.Store.RedisPrefix)
		if err != nil {
			return err
		}
		store = redisStore
		checks["cache"] = c.HealthCheck
	default:
		store = learning.NewMemoryStore()
	}

	categories, err := curriculum.LoadCategories(cfg.CategoriesPath)
	if err != nil {
		return err
	}

	engine := learning.NewEngine(learning.EngineConfig{
		Store:      store,
		Events:     sinks,
		Categories: categories,
		Achievements: learning.AchievementThresholds{
			Beginner:      cfg.Achievements.Beginner,
			Enthusiast:    cfg.Achievements.Enthusiast,
			Master:        cfg.Achievements.Master,
			TimeInvestor:  cfg.Achievements.TimeInvestor,
			Perfectionist: cfg.Achievements.Perfectionist,
		},
	})

	if cfg.CurriculumPath != "" {
		loader, err := curriculum.NewLoader(cfg.CurriculumPath)
		if err != nil {
			return err
		}
		if _, err := loader.ImportAll(ctx, engine); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMux(api.NewHandler(engine, hub), checks),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// newMux creates the HTTP router with health check endpoints and the API routes.
func newMux(h *api.Handler, checks map[string]readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	if h != nil {
		h.Register(mux)
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks map[string]readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("readiness check failed", "dependency", name, "error", err)
				failed[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
