// Package catalog предоставляет справочники отходов и уровней с необязательным кешем.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/wastebank/internal/model"
)

const (
	wastesKey = "catalog:wastes"
	levelsKey = "catalog:levels"
)

// DefaultTTL задаёт время жизни записи справочника в кеше по умолчанию.
const DefaultTTL = 5 * time.Minute

// Source описывает постоянное хранилище справочников.
type Source interface {
	ListWastes(ctx context.Context) ([]model.WasteType, error)
	ListLevels(ctx context.Context) ([]model.LevelTier, error)
}

// Cache хранит сериализованные справочники. Отсутствие ключа не является ошибкой.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Catalog читает справочники из Source через кеш. Сбой кеша не мешает чтению из Source.
type Catalog struct {
	src    Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// New создаёт справочник. cache может быть nil.
func New(src Source, cache Cache, ttl time.Duration, logger *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{src: src, cache: cache, ttl: ttl, logger: logger}
}

// Wastes возвращает справочник отходов.
func (c *Catalog) Wastes(ctx context.Context) ([]model.WasteType, error) {
	return readThrough(ctx, c, wastesKey, c.src.ListWastes)
}

// Levels возвращает таблицу уровней.
func (c *Catalog) Levels(ctx context.Context) ([]model.LevelTier, error) {
	return readThrough(ctx, c, levelsKey, c.src.ListLevels)
}

// Invalidate удаляет справочники из кеша, например после заполнения таблиц.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Del(ctx, wastesKey, levelsKey); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}

func readThrough[T any](ctx context.Context, c *Catalog, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if c.cache != nil {
		raw, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			var items []T
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
			c.logger.Warn("catalog cache entry is corrupt", zap.String("key", key))
		}
	}

	items, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	if c.cache != nil {
		raw, err := json.Marshal(items)
		if err == nil {
			err = c.cache.Set(ctx, key, raw, c.ttl)
		}
		if err != nil {
			c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return items, nil
}
