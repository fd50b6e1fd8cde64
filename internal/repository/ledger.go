package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/model"
)

const userColumns = `id, total_points, waste_collected_kg, level_id, updated_at`

func scanUserLedger(row pgx.Row) (*model.UserLedger, error) {
	var u model.UserLedger
	if err := row.Scan(&u.UserID, &u.TotalPoints, &u.WasteCollectedKg, &u.LevelID, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserLedger возвращает баланс баллов пользователя.
func (r *PostgresRepository) GetUserLedger(ctx context.Context, userID string) (*model.UserLedger, error) {
	u, err := scanUserLedger(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListWastes возвращает справочник отходов.
func (r *PostgresRepository) ListWastes(ctx context.Context) ([]model.WasteType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, points_per_kg, unit FROM wastes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select wastes: %w", err)
	}
	defer rows.Close()

	res := []model.WasteType{}
	for rows.Next() {
		var w model.WasteType
		if err := rows.Scan(&w.ID, &w.Name, &w.PointsPerKg, &w.Unit); err != nil {
			return nil, fmt.Errorf("scan waste: %w", err)
		}
		res = append(res, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListLevels возвращает таблицу уровней по возрастанию порога.
func (r *PostgresRepository) ListLevels(ctx context.Context) ([]model.LevelTier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, required_points, next_tier_points, badge_url FROM levels ORDER BY required_points`,
	)
	if err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}
	defer rows.Close()

	res := []model.LevelTier{}
	for rows.Next() {
		var t model.LevelTier
		if err := rows.Scan(&t.ID, &t.Name, &t.RequiredPoints, &t.NextTierPoints, &t.BadgeURL); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
