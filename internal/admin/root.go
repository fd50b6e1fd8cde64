// Package admin содержит команды административного CLI: миграции, справочные данные, выпуск токенов.
package admin

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mmeshcher/wastebank/internal/catalog"
	"github.com/mmeshcher/wastebank/internal/repository"
)

// Store описывает операции хранилища, нужные административным командам.
type Store interface {
	Migrate(ctx context.Context) error
	Seed(ctx context.Context, data repository.SeedData) (repository.SeedReport, error)
	Close() error
}

// RootOptions содержит глобальные флаги всех команд.
type RootOptions struct {
	DatabaseURI string
	RedisAddr   string

	// Open подключается к хранилищу. Подменяется в тестах.
	Open func(ctx context.Context, dsn string) (Store, error)
	// Cache возвращает кеш справочников или nil, если Redis не задан.
	Cache func(addr string) catalog.Cache
}

func defaultOpen(ctx context.Context, dsn string) (Store, error) {
	return repository.Open(ctx, dsn)
}

func defaultCache(addr string) catalog.Cache {
	if addr == "" {
		return nil
	}
	return catalog.NewRedisCache(redis.NewClient(&redis.Options{Addr: addr}))
}

// NewRootCommand создаёт корневую команду wastebank-admin.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: defaultOpen, Cache: defaultCache})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wastebank-admin",
		Short:         "Administrative tasks for the waste bank service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.DatabaseURI, "database-uri", "d", os.Getenv("DATABASE_URI"), "database URI")
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address of the catalog cache")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newTokenCommand())

	return cmd
}
