package repository

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/wastebank/internal/model"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData содержит справочные данные для начального заполнения.
type SeedData struct {
	Wastes []model.WasteType `yaml:"wastes"`
	Levels []model.LevelTier `yaml:"levels"`
}

// SeedReport сообщает, сколько строк добавлено в каждую таблицу.
type SeedReport struct {
	Wastes int
	Levels int
}

// DefaultSeed возвращает встроенный набор справочных данных.
func DefaultSeed() (SeedData, error) {
	return LoadSeed(bytes.NewReader(defaultSeed))
}

// LoadSeed разбирает YAML со справочными данными и выстраивает цепочку границ уровней:
// nextTierPoints каждого уровня равен порогу следующего, у последнего он не ограничен.
func LoadSeed(r io.Reader) (SeedData, error) {
	var data SeedData

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return SeedData{}, fmt.Errorf("decode seed: %w", err)
	}

	levels, err := chainLevels(data.Levels)
	if err != nil {
		return SeedData{}, err
	}
	data.Levels = levels

	seen := make(map[string]struct{}, len(data.Wastes))
	for _, w := range data.Wastes {
		if w.ID == "" || w.Name == "" {
			return SeedData{}, fmt.Errorf("waste type %q: id and name are required", w.ID)
		}
		if w.PointsPerKg < 0 {
			return SeedData{}, fmt.Errorf("waste type %q: negative rate", w.ID)
		}
		if _, ok := seen[w.ID]; ok {
			return SeedData{}, fmt.Errorf("waste type %q: duplicate id", w.ID)
		}
		seen[w.ID] = struct{}{}
	}

	return data, nil
}

func chainLevels(in []model.LevelTier) ([]model.LevelTier, error) {
	if len(in) == 0 {
		return nil, nil
	}

	levels := append([]model.LevelTier(nil), in...)
	sort.Slice(levels, func(i, j int) bool { return levels[i].RequiredPoints < levels[j].RequiredPoints })

	if levels[0].RequiredPoints != 0 {
		return nil, errors.New("level table must start at 0 points")
	}
	for i := range levels {
		if levels[i].ID == "" {
			return nil, fmt.Errorf("level at %d points has no id", levels[i].RequiredPoints)
		}
		if i+1 < len(levels) {
			if levels[i+1].RequiredPoints == levels[i].RequiredPoints {
				return nil, fmt.Errorf("levels %q and %q share a threshold", levels[i].ID, levels[i+1].ID)
			}
			levels[i].NextTierPoints = levels[i+1].RequiredPoints
			continue
		}
		levels[i].NextTierPoints = model.TopTierSentinel
	}
	return levels, nil
}

// Seed заполняет пустые справочные таблицы. Таблица, в которой уже есть строки, пропускается,
// поэтому повторный запуск ничего не меняет.
func (r *PostgresRepository) Seed(ctx context.Context, data SeedData) (SeedReport, error) {
	var report SeedReport

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		report = SeedReport{}

		empty, err := tableEmpty(ctx, tx, "levels")
		if err != nil {
			return err
		}
		if empty && len(data.Levels) > 0 {
			batch := &pgx.Batch{}
			for _, t := range data.Levels {
				batch.Queue(
					`INSERT INTO levels (id, name, required_points, next_tier_points, badge_url) VALUES ($1, $2, $3, $4, $5)`,
					t.ID, t.Name, t.RequiredPoints, t.NextTierPoints, t.BadgeURL,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert levels: %w", err)
			}
			report.Levels = len(data.Levels)
		}

		empty, err = tableEmpty(ctx, tx, "wastes")
		if err != nil {
			return err
		}
		if empty && len(data.Wastes) > 0 {
			batch := &pgx.Batch{}
			for _, w := range data.Wastes {
				batch.Queue(
					`INSERT INTO wastes (id, name, points_per_kg, unit) VALUES ($1, $2, $3, $4)`,
					w.ID, w.Name, w.PointsPerKg, w.Unit,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert wastes: %w", err)
			}
			report.Wastes = len(data.Wastes)
		}

		return nil
	})

	return report, err
}

func tableEmpty(ctx context.Context, tx pgx.Tx, table string) (bool, error) {
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return count == 0, nil
}
