// Package main запускает HTTP-сервер сервиса банка отходов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/wastebank/internal/authgate"
	"github.com/mmeshcher/wastebank/internal/catalog"
	"github.com/mmeshcher/wastebank/internal/config"
	"github.com/mmeshcher/wastebank/internal/handler"
	"github.com/mmeshcher/wastebank/internal/logger"
	"github.com/mmeshcher/wastebank/internal/middleware"
	"github.com/mmeshcher/wastebank/internal/repository"
	"github.com/mmeshcher/wastebank/internal/service"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sugar := log.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		sugar.Fatalw("auth provider initialization error", "provider", cfg.AuthProvider, "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = catalog.NewRedisCache(rdb)
		sugar.Infow("catalog cache enabled", "redis", cfg.RedisAddr, "ttl", cfg.CatalogCacheTTL)
	}
	cat := catalog.New(repo, cache, cfg.CatalogCacheTTL, log)

	svc := service.NewService(repo, cat, log, cfg.PageSize)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(verifier, log)
	h := handler.NewHandler(svc, log, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting wastebank server", "addr", cfg.RunAddress, "auth", cfg.AuthProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (authgate.TokenVerifier, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderFirebase:
		return authgate.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	default:
		return authgate.NewJWTVerifier(cfg.AuthSecret, 0)
	}
}
