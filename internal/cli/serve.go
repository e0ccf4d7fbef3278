package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arnold/tribes-api/internal/cache"
	"github.com/arnold/tribes-api/internal/config"
	"github.com/arnold/tribes-api/internal/database"
	"github.com/arnold/tribes-api/internal/handlers"
	"github.com/arnold/tribes-api/internal/logging"
	"github.com/arnold/tribes-api/internal/server"
	"github.com/arnold/tribes-api/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer logging.Sync()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.Logger

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", zap.Bool("postgres", cfg.UsePostgres()))

	store, closeCache := newCache(ctx, cfg)
	defer closeCache()

	hub := handlers.NewHub()
	svc := services.New(services.Deps{
		DB:               db,
		Cache:            store,
		CacheTTL:         cfg.CacheTTL,
		Events:           hub,
		Push:             services.NewPush(ctx, db, cfg.FCMServiceAccount),
		ProgressStep:     cfg.ProgressStep,
		ActiveUserWindow: time.Duration(cfg.ActiveUserWindowDays) * 24 * time.Hour,
	})
	app := server.New(cfg, db, svc, hub)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}

// newCache uses redis when configured and reachable, otherwise an in-process
// cache.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		logging.Logger.Info("cache: using in-memory store")
		return cache.NewMemory(), func() {}
	}

	r := cache.NewRedis(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logging.Logger.Warn("cache: redis unreachable, using in-memory store", zap.Error(err))
		r.Close()
		return cache.NewMemory(), func() {}
	}
	logging.Logger.Info("cache: using redis", zap.String("addr", cfg.RedisAddr))
	return r, func() { r.Close() }
}
