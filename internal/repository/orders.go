package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/model"
)

const orderColumns = `id, user_id, bank_id, contact, schedule, realized_at, waste_image_ref, wastes, status, created_at, updated_at`

func tableFor(kind model.OrderKind) (string, error) {
	switch kind {
	case model.KindPickup:
		return "pickup_orders", nil
	case model.KindDeliver:
		return "deliver_orders", nil
	default:
		return "", fmt.Errorf("%w: unknown order kind %q", apperr.ErrValidation, kind)
	}
}

func scanOrder(row pgx.Row, kind model.OrderKind) (*model.Order, error) {
	var (
		o           model.Order
		bankID      *string
		contactJSON []byte
		wastesJSON  []byte
		status      string
	)

	err := row.Scan(&o.ID, &o.UserID, &bankID, &contactJSON, &o.Schedule, &o.RealizedAt,
		&o.WasteImageRef, &wastesJSON, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(contactJSON, &o.Contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	if err := json.Unmarshal(wastesJSON, &o.Wastes); err != nil {
		return nil, fmt.Errorf("decode wastes: %w", err)
	}
	if o.Wastes == nil {
		o.Wastes = []model.WasteLine{}
	}

	o.Kind = kind
	o.Bank = model.BankRefFromPtr(bankID)
	o.Status = model.Status(status)
	return &o, nil
}

func encodeOrder(o *model.Order) (contact, wastes []byte, err error) {
	contact, err = json.Marshal(o.Contact)
	if err != nil {
		return nil, nil, fmt.Errorf("encode contact: %w", err)
	}
	lines := o.Wastes
	if lines == nil {
		lines = []model.WasteLine{}
	}
	wastes, err = json.Marshal(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("encode wastes: %w", err)
	}
	return contact, wastes, nil
}

// CreateOrder сохраняет новый заказ. Строка баллов пользователя создаётся при первом заказе на базовом уровне.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order, baseLevelID string, ev model.Event) error {
	table, err := tableFor(o.Kind)
	if err != nil {
		return err
	}
	contact, wastes, err := encodeOrder(o)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, level_id, updated_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			o.UserID, baseLevelID, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO `+table+` (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.ID, o.UserID, o.Bank.Ptr(), contact, o.Schedule, o.RealizedAt,
			o.WasteImageRef, wastes, string(o.Status), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: order %s already exists", apperr.ErrConflict, o.ID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		return appendEvent(ctx, tx, ev)
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, kind model.OrderKind, id string) (*model.Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM `+table+` WHERE id = $1`, id)
	o, err := scanOrder(row, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s order %s", apperr.ErrNotFound, kind, id)
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает страницу заказов владельца или закреплённого банка в порядке создания.
func (r *PostgresRepository) ListOrders(ctx context.Context, kind model.OrderKind, actor model.Actor, f model.ListFilter) ([]model.Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var q strings.Builder
	q.WriteString(`SELECT ` + orderColumns + ` FROM ` + table)

	switch actor.(type) {
	case model.UserActor:
		q.WriteString(` WHERE user_id = $1`)
	case model.BankActor:
		q.WriteString(` WHERE bank_id = $1`)
	default:
		return nil, fmt.Errorf("%w: unsupported role", apperr.ErrForbidden)
	}
	args := []any{actor.ActorID()}

	switch {
	case f.Status != "":
		args = append(args, string(f.Status))
		fmt.Fprintf(&q, ` AND status = $%d`, len(args))
	case f.ActiveOnly:
		args = append(args, string(model.StatusCompleted))
		fmt.Fprintf(&q, ` AND status <> $%d`, len(args))
	}

	args = append(args, f.Offset, f.Limit)
	fmt.Fprintf(&q, ` ORDER BY created_at, id OFFSET $%d LIMIT $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, table string, kind model.OrderKind, id string) (*model.Order, error) {
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM `+table+` WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s order %s", apperr.ErrNotFound, kind, id)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

func saveOrder(ctx context.Context, tx pgx.Tx, table string, o *model.Order) error {
	contact, wastes, err := encodeOrder(o)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+table+`
		 SET bank_id = $2, contact = $3, schedule = $4, realized_at = $5,
		     waste_image_ref = $6, wastes = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		o.ID, o.Bank.Ptr(), contact, o.Schedule, o.RealizedAt,
		o.WasteImageRef, wastes, string(o.Status), o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, ev model.Event) error {
	var from *string
	if ev.From != "" {
		s := string(ev.From)
		from = &s
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO order_events (order_id, order_kind, from_status, to_status, actor_role, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.OrderID, string(ev.Kind), from, string(ev.To), string(ev.ActorRole), ev.ActorID, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

// UpdateOrder блокирует строку заказа, применяет fn и сохраняет результат вместе с событием журнала.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order) (*model.Event, error)) (*model.Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var res *model.Order
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, table, kind, id)
		if err != nil {
			return err
		}

		ev, err := fn(o)
		if err != nil {
			return err
		}

		if err := saveOrder(ctx, tx, table, o); err != nil {
			return err
		}
		if ev != nil {
			if err := appendEvent(ctx, tx, *ev); err != nil {
				return err
			}
		}

		res = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CompleteOrder блокирует заказ, затем строку баллов его владельца, и фиксирует завершение
// и начисление одной транзакцией. Порядок блокировок одинаков для всех вызовов.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order, u *model.UserLedger) (*model.Event, error)) (*model.Order, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var res *model.Order
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, table, kind, id)
		if err != nil {
			return err
		}

		u, err := scanUserLedger(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, o.UserID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: user %s", apperr.ErrNotFound, o.UserID)
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		ev, err := fn(o, u)
		if err != nil {
			return err
		}

		if err := saveOrder(ctx, tx, table, o); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET total_points = $2, waste_collected_kg = $3, level_id = $4, updated_at = $5 WHERE id = $1`,
			u.UserID, u.TotalPoints, u.WasteCollectedKg, u.LevelID, u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update user points: %w", err)
		}

		if ev != nil {
			if err := appendEvent(ctx, tx, *ev); err != nil {
				return err
			}
		}

		res = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteOrder блокирует заказ и удаляет его, если fn не вернула ошибку.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order) error) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, table, kind, id)
		if err != nil {
			return err
		}

		if err := fn(o); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
}

// OrderEvents возвращает журнал смен статуса заказа в порядке записи.
func (r *PostgresRepository) OrderEvents(ctx context.Context, orderID string) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, order_kind, COALESCE(from_status, ''), to_status, actor_role, actor_id, created_at
		 FROM order_events
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order events: %w", err)
	}
	defer rows.Close()

	var res []model.Event
	for rows.Next() {
		var (
			ev                   model.Event
			kind, from, to, role string
			createdAt            time.Time
		)
		if err := rows.Scan(&ev.OrderID, &kind, &from, &to, &role, &ev.ActorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		ev.Kind = model.OrderKind(kind)
		ev.From = model.Status(from)
		ev.To = model.Status(to)
		ev.ActorRole = model.Role(role)
		ev.CreatedAt = createdAt
		res = append(res, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
