package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/model"
)

// memRepo хранит заказы и пользователей в памяти. Мьютекс играет роль транзакции над строками заказа и пользователя.
type memRepo struct {
	mu     sync.Mutex
	orders map[model.OrderKind]map[string]model.Order
	users  map[string]model.UserLedger
	events []model.Event

	failCommit error
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders: map[model.OrderKind]map[string]model.Order{
			model.KindPickup:  {},
			model.KindDeliver: {},
		},
		users: map[string]model.UserLedger{},
	}
}

func cloneOrder(o model.Order) model.Order {
	if o.Wastes != nil {
		o.Wastes = append(make([]model.WasteLine, 0, len(o.Wastes)), o.Wastes...)
	}
	return o
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) CreateOrder(ctx context.Context, o *model.Order, baseLevelID string, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[o.UserID]; !ok {
		r.users[o.UserID] = model.UserLedger{UserID: o.UserID, LevelID: baseLevelID}
	}
	r.orders[o.Kind][o.ID] = cloneOrder(*o)
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) GetOrder(ctx context.Context, kind model.OrderKind, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *memRepo) ListOrders(ctx context.Context, kind model.OrderKind, actor model.Actor, f model.ListFilter) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Order
	for _, o := range r.orders[kind] {
		if !visibleTo(&o, actor) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.ActiveOnly && o.Completed() {
			continue
		}
		res = append(res, cloneOrder(o))
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})

	if f.Offset >= len(res) {
		return nil, nil
	}
	res = res[f.Offset:]
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (r *memRepo) UpdateOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order) (*model.Event, error)) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	o := cloneOrder(stored)
	ev, err := fn(&o)
	if err != nil {
		return nil, err
	}
	if r.failCommit != nil {
		return nil, r.failCommit
	}
	r.orders[kind][id] = cloneOrder(o)
	if ev != nil {
		r.events = append(r.events, *ev)
	}
	return &o, nil
}

func (r *memRepo) CompleteOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order, u *model.UserLedger) (*model.Event, error)) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	u, ok := r.users[stored.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, stored.UserID)
	}

	o := cloneOrder(stored)
	ev, err := fn(&o, &u)
	if err != nil {
		return nil, err
	}
	if r.failCommit != nil {
		return nil, r.failCommit
	}
	r.orders[kind][id] = cloneOrder(o)
	r.users[u.UserID] = u
	if ev != nil {
		r.events = append(r.events, *ev)
	}
	return &o, nil
}

func (r *memRepo) DeleteOrder(ctx context.Context, kind model.OrderKind, id string, fn func(o *model.Order) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[kind][id]
	if !ok {
		return fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	if err := fn(&stored); err != nil {
		return err
	}
	delete(r.orders[kind], id)
	return nil
}

func (r *memRepo) GetUserLedger(ctx context.Context, userID string) (*model.UserLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	return &u, nil
}

func (r *memRepo) user(id string) model.UserLedger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memRepo) setPoints(id string, points int64, levelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.TotalPoints = points
	u.LevelID = levelID
	r.users[id] = u
}

type staticCatalog struct {
	wastes []model.WasteType
	levels []model.LevelTier
	err    error
}

func (c *staticCatalog) Wastes(ctx context.Context) ([]model.WasteType, error) {
	return c.wastes, c.err
}

func (c *staticCatalog) Levels(ctx context.Context) ([]model.LevelTier, error) {
	return c.levels, c.err
}

func testCatalog() *staticCatalog {
	return &staticCatalog{
		wastes: []model.WasteType{
			{ID: "plastic", Name: "Botol Plastik", PointsPerKg: 2, Unit: "kg"},
			{ID: "paper", Name: "Kertas Bekas", PointsPerKg: 1, Unit: "kg"},
			{ID: "can", Name: "Kaleng Bekas", PointsPerKg: 3, Unit: "kg"},
		},
		levels: []model.LevelTier{
			{ID: "newbie", Name: "Newbie", RequiredPoints: 0, NextTierPoints: 5},
			{ID: "warrior", Name: "Warrior", RequiredPoints: 5, NextTierPoints: 10},
			{ID: "master", Name: "Master", RequiredPoints: 10, NextTierPoints: 15},
			{ID: "grandmaster", Name: "Grand Master", RequiredPoints: 15, NextTierPoints: model.TopTierSentinel},
		},
	}
}
