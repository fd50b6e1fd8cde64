// Package service реализует бизнес-логику сервиса банка отходов: жизненный цикл заказов
// и начисление баллов пользователю.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/ledger"
	"github.com/mmeshcher/wastebank/internal/model"
	"github.com/mmeshcher/wastebank/internal/orderflow"
	"github.com/mmeshcher/wastebank/internal/validation"
)

// DefaultPageSize задаёт размер страницы списка заказов по умолчанию.
const DefaultPageSize = 6

// Repository описывает контракт доступа к данным, используемый сервисом.
// Методы с функцией-аргументом выполняют её внутри одной транзакции над заблокированными строками.
type Repository interface {
	Close() error
	CreateOrder(ctx context.Context, o *model.Order, baseLevelID string, ev model.Event) error
	GetOrder(ctx context.Context, kind model.OrderKind, id string) (*model.Order, error)
	ListOrders(ctx context.Context, kind model.OrderKind, actor model.Actor, f model.ListFilter) ([]model.Order, error)
	UpdateOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order) (*model.Event, error)) (*model.Order, error)
	CompleteOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order, u *model.UserLedger) (*model.Event, error)) (*model.Order, error)
	DeleteOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order) error) error
	GetUserLedger(ctx context.Context, userID string) (*model.UserLedger, error)
}

// Catalog предоставляет справочники отходов и уровней.
type Catalog interface {
	Wastes(ctx context.Context) ([]model.WasteType, error)
	Levels(ctx context.Context) ([]model.LevelTier, error)
}

// Service содержит бизнес-логику сервиса банка отходов.
type Service struct {
	repo     Repository
	catalog  Catalog
	logger   *zap.Logger
	pageSize int
	now      func() time.Time
}

// NewService создаёт сервис с указанным репозиторием и справочниками.
func NewService(repo Repository, catalog Catalog, logger *zap.Logger, pageSize int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		logger:   logger,
		pageSize: pageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateOrderCommand содержит данные нового заказа от владельца.
type CreateOrderCommand struct {
	Kind          model.OrderKind
	Bank          model.BankRef
	Contact       model.Contact
	Schedule      time.Time
	WasteImageRef string
}

// CreateOrder проверяет обязательные поля и сохраняет заказ в статусе unprocessed.
func (s *Service) CreateOrder(ctx context.Context, actor model.Actor, cmd CreateOrderCommand) (*model.Order, error) {
	user, ok := actor.(model.UserActor)
	if !ok {
		return nil, fmt.Errorf("%w: only users create orders", apperr.ErrForbidden)
	}
	if !cmd.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown order kind %q", apperr.ErrValidation, cmd.Kind)
	}
	if cmd.Kind == model.KindDeliver && !cmd.Bank.Matched() {
		return nil, fmt.Errorf("%w: bankId is required for deliver orders", apperr.ErrValidation)
	}
	if err := validation.Contact(cmd.Kind, cmd.Contact); err != nil {
		return nil, err
	}
	if err := validation.Schedule(cmd.Schedule); err != nil {
		return nil, err
	}

	tiers, err := s.catalog.Levels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	base, err := ledger.ResolveTier(tiers, "", 0)
	if err != nil {
		return nil, fmt.Errorf("resolve base level: %w", err)
	}

	now := s.now()
	o := &model.Order{
		ID:            uuid.NewString(),
		Kind:          cmd.Kind,
		UserID:        user.ID,
		Bank:          cmd.Bank,
		Contact:       cmd.Contact,
		Schedule:      cmd.Schedule.UTC(),
		WasteImageRef: cmd.WasteImageRef,
		Wastes:        []model.WasteLine{},
		Status:        model.StatusUnprocessed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ev := model.Event{
		OrderID:   o.ID,
		Kind:      o.Kind,
		To:        model.StatusUnprocessed,
		ActorRole: model.RoleUser,
		ActorID:   user.ID,
		CreatedAt: now,
	}

	if err := s.repo.CreateOrder(ctx, o, base.ID, ev); err != nil {
		return nil, err
	}
	return o, nil
}

// PatchOrder применяет изменение заказа от владельца или закреплённого банка.
// Переход в completed начисляет баллы в той же транзакции, что и смена статуса.
func (s *Service) PatchOrder(ctx context.Context, kind model.OrderKind, id string, actor model.Actor, req orderflow.Request) (*model.Order, error) {
	current, err := s.repo.GetOrder(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	patch, err := orderflow.Build(actor, current, req)
	if err != nil {
		return nil, err
	}

	if cp, ok := patch.(orderflow.CompletionPatch); ok {
		return s.complete(ctx, kind, id, actor, req, cp)
	}

	return s.repo.UpdateOrder(ctx, kind, id, func(o *model.Order) (*model.Event, error) {
		// Повторная проверка по заблокированному состоянию.
		p, err := orderflow.Build(actor, o, req)
		if err != nil {
			return nil, err
		}
		from := o.Status
		now := s.now()
		p.Apply(o, now)
		if o.Status == from {
			return nil, nil
		}
		return &model.Event{
			OrderID:   o.ID,
			Kind:      o.Kind,
			From:      from,
			To:        o.Status,
			ActorRole: actor.Role(),
			ActorID:   actor.ActorID(),
			CreatedAt: now,
		}, nil
	})
}

func (s *Service) complete(ctx context.Context, kind model.OrderKind, id string, actor model.Actor, req orderflow.Request, cp orderflow.CompletionPatch) (*model.Order, error) {
	wastes, err := s.catalog.Wastes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load waste catalog: %w", err)
	}
	tiers, err := s.catalog.Levels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}

	// Начисление вычисляется целиком до открытия транзакции.
	award, err := ledger.Compute(ledger.NewRates(wastes), cp.Items)
	if err != nil {
		return nil, err
	}
	cp.Lines = award.Lines

	var before, after model.UserLedger
	o, err := s.repo.CompleteOrder(ctx, kind, id, func(o *model.Order, u *model.UserLedger) (*model.Event, error) {
		p, err := orderflow.Build(actor, o, req)
		if err != nil {
			return nil, err
		}
		if _, ok := p.(orderflow.CompletionPatch); !ok {
			return nil, fmt.Errorf("%w: order state changed", apperr.ErrConflict)
		}

		updated, err := ledger.Apply(*u, award, tiers)
		if err != nil {
			return nil, err
		}

		now := s.now()
		from := o.Status
		cp.Apply(o, now)
		before, after = *u, updated
		after.UpdatedAt = now
		*u = after

		return &model.Event{
			OrderID:   o.ID,
			Kind:      o.Kind,
			From:      from,
			To:        model.StatusCompleted,
			ActorRole: actor.Role(),
			ActorID:   actor.ActorID(),
			CreatedAt: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("points awarded",
		zap.String("order", o.ID),
		zap.String("kind", string(o.Kind)),
		zap.String("user", o.UserID),
		zap.String("bank", actor.ActorID()),
		zap.Int64("points", award.TotalPoints),
		zap.Int64("total", after.TotalPoints),
		zap.String("level", after.LevelID),
		zap.Bool("levelChanged", before.LevelID != after.LevelID),
	)
	return o, nil
}

// DeleteOrder удаляет заказ владельца, пока он не обработан банком.
func (s *Service) DeleteOrder(ctx context.Context, kind model.OrderKind, id string, actor model.Actor) error {
	user, ok := actor.(model.UserActor)
	if !ok {
		return fmt.Errorf("%w: only the owner may delete an order", apperr.ErrForbidden)
	}

	return s.repo.DeleteOrder(ctx, kind, id, func(o *model.Order) error {
		if o.UserID != user.ID {
			return fmt.Errorf("%w: order belongs to another user", apperr.ErrForbidden)
		}
		if o.Status != model.StatusUnprocessed {
			return fmt.Errorf("%w: order is already %s", apperr.ErrBadRequest, o.Status)
		}
		return nil
	})
}

// GetOrder возвращает заказ, если вызывающий является его владельцем или закреплённым банком.
func (s *Service) GetOrder(ctx context.Context, kind model.OrderKind, id string, actor model.Actor) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(o, actor) {
		return nil, fmt.Errorf("%w: order is out of caller scope", apperr.ErrForbidden)
	}
	return o, nil
}

func visibleTo(o *model.Order, actor model.Actor) bool {
	switch a := actor.(type) {
	case model.UserActor:
		return o.UserID == a.ID
	case model.BankActor:
		return o.Bank.Is(a.ID)
	default:
		return false
	}
}

// ListQuery задаёт фильтр и страницу (с единицы) списка заказов.
type ListQuery struct {
	Status     model.Status
	ActiveOnly bool
	Page       int
}

// ListOrders возвращает страницу заказов в области видимости вызывающего.
func (s *Service) ListOrders(ctx context.Context, kind model.OrderKind, actor model.Actor, q ListQuery) ([]model.Order, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown order kind %q", apperr.ErrValidation, kind)
	}
	if q.Status != "" && q.ActiveOnly {
		return nil, fmt.Errorf("%w: status and active filters are exclusive", apperr.ErrValidation)
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	return s.repo.ListOrders(ctx, kind, actor, model.ListFilter{
		Status:     q.Status,
		ActiveOnly: q.ActiveOnly,
		Offset:     (page - 1) * s.pageSize,
		Limit:      s.pageSize,
	})
}

// LedgerView описывает баланс пользователя вместе с текущим уровнем.
type LedgerView struct {
	model.UserLedger
	Level model.LevelTier `json:"level"`
}

// Ledger возвращает баланс баллов пользователя и его уровень.
func (s *Service) Ledger(ctx context.Context, userID string) (*LedgerView, error) {
	u, err := s.repo.GetUserLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	tiers, err := s.catalog.Levels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}

	view := &LedgerView{UserLedger: *u}
	for _, t := range tiers {
		if t.ID == u.LevelID {
			view.Level = t
			return view, nil
		}
	}
	tier, err := ledger.ResolveTier(tiers, "", u.TotalPoints)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("user %s level %q not in table", userID, u.LevelID), err)
	}
	view.Level = tier
	return view, nil
}

// Wastes возвращает справочник отходов.
func (s *Service) Wastes(ctx context.Context) ([]model.WasteType, error) {
	return s.catalog.Wastes(ctx)
}

// Levels возвращает таблицу уровней.
func (s *Service) Levels(ctx context.Context) ([]model.LevelTier, error) {
	return s.catalog.Levels(ctx)
}
