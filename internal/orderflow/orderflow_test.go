package orderflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/ledger"
	"github.com/mmeshcher/wastebank/internal/model"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind     model.OrderKind
		from, to model.Status
		want     bool
	}{
		{model.KindPickup, model.StatusUnprocessed, model.StatusAwaitingPickup, true},
		{model.KindPickup, model.StatusUnprocessed, model.StatusAwaitingWeighing, true},
		{model.KindPickup, model.StatusAwaitingPickup, model.StatusAwaitingWeighing, true},
		{model.KindPickup, model.StatusAwaitingWeighing, model.StatusCompleted, true},
		{model.KindDeliver, model.StatusUnprocessed, model.StatusAwaitingWeighing, true},
		{model.KindDeliver, model.StatusAwaitingWeighing, model.StatusCompleted, true},
		// deliver has no pickup leg
		{model.KindDeliver, model.StatusUnprocessed, model.StatusAwaitingPickup, false},
		// skipping weighing
		{model.KindPickup, model.StatusUnprocessed, model.StatusCompleted, false},
		{model.KindPickup, model.StatusAwaitingPickup, model.StatusCompleted, false},
		// backwards and terminal
		{model.KindPickup, model.StatusCompleted, model.StatusAwaitingWeighing, false},
		{model.KindPickup, model.StatusCompleted, model.StatusCompleted, false},
		{model.KindPickup, model.StatusAwaitingWeighing, model.StatusUnprocessed, false},
		{model.KindDeliver, model.StatusAwaitingWeighing, model.StatusAwaitingWeighing, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.kind, tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s, %s) = %v, want %v", tc.kind, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSuccessorsIsACopy(t *testing.T) {
	next := Successors(model.KindPickup, model.StatusUnprocessed)
	require.Len(t, next, 2)
	next[0] = model.StatusCompleted
	assert.False(t, CanTransition(model.KindPickup, model.StatusUnprocessed, model.StatusCompleted))
}

func statusPtr(s model.Status) *model.Status { return &s }
func strPtr(s string) *string                { return &s }

func newOrder(kind model.OrderKind, status model.Status) *model.Order {
	return &model.Order{
		ID:     "o1",
		Kind:   kind,
		UserID: "u1",
		Bank:   model.MatchedBank("b1"),
		Status: status,
	}
}

func TestBuildOwnerPatch(t *testing.T) {
	schedule := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		actor   model.Actor
		order   *model.Order
		req     Request
		wantErr error
	}{
		{
			name:  "owner changes bank",
			actor: model.UserActor{ID: "u1"},
			order: newOrder(model.KindPickup, model.StatusUnprocessed),
			req:   Request{BankID: strPtr("b2"), Schedule: &schedule},
		},
		{
			name:    "another user",
			actor:   model.UserActor{ID: "u2"},
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			req:     Request{BankID: strPtr("b2")},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "already touched by bank",
			actor:   model.UserActor{ID: "u1"},
			order:   newOrder(model.KindPickup, model.StatusAwaitingPickup),
			req:     Request{BankID: strPtr("b2")},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "user attempts bank-only transition",
			actor:   model.UserActor{ID: "u1"},
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			req:     Request{Status: statusPtr(model.StatusAwaitingWeighing)},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "empty patch",
			actor:   model.UserActor{ID: "u1"},
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			req:     Request{},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "invalid contact",
			actor:   model.UserActor{ID: "u1"},
			order:   newOrder(model.KindDeliver, model.StatusUnprocessed),
			req:     Request{Contact: &model.Contact{Name: "Budi", Phone: "123"}},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.actor, tt.order, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			require.IsType(t, OwnerPatch{}, p)

			now := time.Now()
			p.Apply(tt.order, now)
			assert.True(t, tt.order.Bank.Is("b2"))
			assert.Equal(t, schedule, tt.order.Schedule)
			assert.Equal(t, model.StatusUnprocessed, tt.order.Status)
			assert.Equal(t, now, tt.order.UpdatedAt)
		})
	}
}

func TestBuildBankPatch(t *testing.T) {
	wastes := []ledger.Item{{WasteTypeID: "plastic", WeightKg: 2}}

	tests := []struct {
		name     string
		order    *model.Order
		actor    model.Actor
		req      Request
		wantType Patch
		wantErr  error
	}{
		{
			name:     "pickup collected",
			order:    newOrder(model.KindPickup, model.StatusUnprocessed),
			actor:    model.BankActor{ID: "b1"},
			req:      Request{Status: statusPtr(model.StatusAwaitingPickup)},
			wantType: StatusPatch{},
		},
		{
			name:     "completion with wastes",
			order:    newOrder(model.KindDeliver, model.StatusAwaitingWeighing),
			actor:    model.BankActor{ID: "b1"},
			req:      Request{Status: statusPtr(model.StatusCompleted), Wastes: wastes},
			wantType: CompletionPatch{},
		},
		{
			name:    "bank mismatch",
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			actor:   model.BankActor{ID: "b2"},
			req:     Request{Status: statusPtr(model.StatusAwaitingPickup)},
			wantErr: apperr.ErrForbidden,
		},
		{
			name: "unmatched pickup",
			order: func() *model.Order {
				o := newOrder(model.KindPickup, model.StatusUnprocessed)
				o.Bank = model.UnmatchedBank()
				return o
			}(),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr(model.StatusAwaitingPickup)},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "completed is immutable",
			order:   newOrder(model.KindPickup, model.StatusCompleted),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr(model.StatusCompleted), Wastes: wastes},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "completed cannot move back",
			order:   newOrder(model.KindPickup, model.StatusCompleted),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr(model.StatusAwaitingWeighing)},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "skipping weighing",
			order:   newOrder(model.KindPickup, model.StatusAwaitingPickup),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr(model.StatusCompleted), Wastes: wastes},
			wantErr: apperr.ErrBadRequest,
		},
		{
			name:    "completion without wastes",
			order:   newOrder(model.KindPickup, model.StatusAwaitingWeighing),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr(model.StatusCompleted)},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "wastes before completion",
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr(model.StatusAwaitingWeighing), Wastes: wastes},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "bank edits owner fields",
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{BankID: strPtr("b9")},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "missing status",
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "unknown status",
			order:   newOrder(model.KindPickup, model.StatusUnprocessed),
			actor:   model.BankActor{ID: "b1"},
			req:     Request{Status: statusPtr("cancelled")},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.actor, tt.order, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
		})
	}
}

func TestCompletionPatchApply(t *testing.T) {
	o := newOrder(model.KindPickup, model.StatusAwaitingWeighing)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lines := []model.WasteLine{{WasteTypeID: "plastic", WeightKg: 2, PointsAwarded: 4}}

	CompletionPatch{Lines: lines}.Apply(o, now)

	assert.Equal(t, model.StatusCompleted, o.Status)
	assert.Equal(t, lines, o.Wastes)
	require.NotNil(t, o.RealizedAt)
	assert.Equal(t, now, *o.RealizedAt)

	lines[0].PointsAwarded = 100
	assert.Equal(t, int64(4), o.Wastes[0].PointsAwarded)
}
