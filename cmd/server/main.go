package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tahcohcat/ascended-progress/config"
	"github.com/tahcohcat/ascended-progress/internal/achievements"
	"github.com/tahcohcat/ascended-progress/internal/api"
	"github.com/tahcohcat/ascended-progress/internal/auth"
	"github.com/tahcohcat/ascended-progress/internal/database"
	"github.com/tahcohcat/ascended-progress/internal/logger"
	"github.com/tahcohcat/ascended-progress/internal/notify"
	"github.com/tahcohcat/ascended-progress/internal/scheduler"
	"github.com/tahcohcat/ascended-progress/internal/services"
	"github.com/tahcohcat/ascended-progress/internal/websocket"
)

// store is everything the services need from persistence.
type store interface {
	services.ProgressStore
	services.AchievementStore
	services.BadgeSeeder
	achievements.Source
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(logger.LogLevel(cfg.Log.Level), cfg.Log.Mode); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.New().WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config) error {
	l := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var st store
	if cfg.Database.Driver == "memory" {
		st = database.NewMemoryStore()
	} else {
		db, err := database.NewDB(cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		st = db
	}

	if err := services.SeedDefaultBadges(ctx, st, cfg.Badges.CatalogFile); err != nil {
		return err
	}
	catalog := achievements.NewCatalog(st)
	if err := catalog.Refresh(ctx); err != nil {
		return err
	}

	// Notifications go to local WebSocket clients, and through Redis to the
	// clients of every other instance when enabled.
	hub := websocket.NewHub()
	go hub.Run(ctx)

	var publisher notify.Publisher = hub
	if cfg.Redis.Enabled {
		rp, err := notify.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer rp.Close()
		// peers' notifications only; our own reach the hub directly
		if err := rp.Forward(ctx, hub.Deliver); err != nil {
			return err
		}
		publisher = notify.Multi{hub, rp}
	}

	// Initialize services
	achievementService := services.NewAchievementService(st, st, catalog, publisher)
	progressService := services.NewProgressService(st, achievementService,
		cfg.Progress.CompletionThreshold, cfg.Progress.SyncWorkers)

	jobs := scheduler.New(catalog, cfg.Badges.RefreshInterval)
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer jobs.Stop()

	sessions := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionName)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	// Authenticated routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(sessions.AuthMiddleware)

	apiRouter := authRouter.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(apiRouter, api.NewHandler(progressService, achievementService))

	// WebSocket routes
	websocket.RegisterRoutes(authRouter, hub, sessions.GetUserIDFromSession)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", "port", cfg.Server.Port, "database", cfg.Database.Driver, "redis", cfg.Redis.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
