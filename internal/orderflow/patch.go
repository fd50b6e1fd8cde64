package orderflow

import (
	"fmt"
	"time"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/ledger"
	"github.com/mmeshcher/wastebank/internal/model"
	"github.com/mmeshcher/wastebank/internal/validation"
)

// Request содержит поля запроса на изменение заказа. Набор допустимых полей зависит от роли.
type Request struct {
	// Поля владельца.
	BankID        *string        `json:"bankId,omitempty"`
	Contact       *model.Contact `json:"contact,omitempty"`
	Schedule      *time.Time     `json:"schedule,omitempty"`
	WasteImageRef *string        `json:"wasteImageRef,omitempty"`

	// Поля банка.
	Status *model.Status `json:"status,omitempty"`
	Wastes []ledger.Item `json:"wastes,omitempty"`
}

func (r Request) hasOwnerFields() bool {
	return r.BankID != nil || r.Contact != nil || r.Schedule != nil || r.WasteImageRef != nil
}

func (r Request) hasBankFields() bool {
	return r.Status != nil || r.Wastes != nil
}

// Patch описывает проверенное изменение, которое можно применить к заказу.
type Patch interface {
	Apply(o *model.Order, now time.Time)
	sealedPatch()
}

// OwnerPatch изменяет поля, доступные владельцу необработанного заказа.
type OwnerPatch struct {
	Bank          *model.BankRef
	Contact       *model.Contact
	Schedule      *time.Time
	WasteImageRef *string
}

func (p OwnerPatch) Apply(o *model.Order, now time.Time) {
	if p.Bank != nil {
		o.Bank = *p.Bank
	}
	if p.Contact != nil {
		o.Contact = *p.Contact
	}
	if p.Schedule != nil {
		o.Schedule = *p.Schedule
	}
	if p.WasteImageRef != nil {
		o.WasteImageRef = *p.WasteImageRef
	}
	o.UpdatedAt = now
}

func (OwnerPatch) sealedPatch() {}

// StatusPatch переводит заказ в промежуточный статус.
type StatusPatch struct {
	To model.Status
}

func (p StatusPatch) Apply(o *model.Order, now time.Time) {
	o.Status = p.To
	o.UpdatedAt = now
}

func (StatusPatch) sealedPatch() {}

// CompletionPatch завершает заказ. Баллы по строкам вычисляются ledger.Compute
// до применения, Apply лишь записывает готовые строки.
type CompletionPatch struct {
	Items []ledger.Item
	Lines []model.WasteLine
}

func (p CompletionPatch) Apply(o *model.Order, now time.Time) {
	o.Wastes = append([]model.WasteLine(nil), p.Lines...)
	o.Status = model.StatusCompleted
	realized := now
	o.RealizedAt = &realized
	o.UpdatedAt = now
}

func (CompletionPatch) sealedPatch() {}

// Build проверяет запрос против текущего состояния заказа и роли вызывающего.
func Build(actor model.Actor, o *model.Order, req Request) (Patch, error) {
	switch a := actor.(type) {
	case model.UserActor:
		return buildOwnerPatch(a, o, req)
	case model.BankActor:
		return buildBankPatch(a, o, req)
	default:
		return nil, fmt.Errorf("%w: unsupported role", apperr.ErrForbidden)
	}
}

func buildOwnerPatch(a model.UserActor, o *model.Order, req Request) (Patch, error) {
	if o.UserID != a.ID {
		return nil, fmt.Errorf("%w: order belongs to another user", apperr.ErrForbidden)
	}
	if o.Status != model.StatusUnprocessed {
		return nil, fmt.Errorf("%w: order is already %s", apperr.ErrForbidden, o.Status)
	}
	if req.hasBankFields() {
		return nil, fmt.Errorf("%w: status and wastes are set by the bank", apperr.ErrForbidden)
	}
	if !req.hasOwnerFields() {
		return nil, fmt.Errorf("%w: nothing to update", apperr.ErrValidation)
	}

	var p OwnerPatch
	if req.BankID != nil {
		if *req.BankID == "" {
			return nil, fmt.Errorf("%w: bankId must not be empty", apperr.ErrValidation)
		}
		bank := model.MatchedBank(*req.BankID)
		p.Bank = &bank
	}
	if req.Contact != nil {
		if err := validation.Contact(o.Kind, *req.Contact); err != nil {
			return nil, err
		}
		c := *req.Contact
		p.Contact = &c
	}
	if req.Schedule != nil {
		if err := validation.Schedule(*req.Schedule); err != nil {
			return nil, err
		}
		s := *req.Schedule
		p.Schedule = &s
	}
	if req.WasteImageRef != nil {
		ref := *req.WasteImageRef
		p.WasteImageRef = &ref
	}
	return p, nil
}

func buildBankPatch(a model.BankActor, o *model.Order, req Request) (Patch, error) {
	if !o.Bank.Is(a.ID) {
		return nil, fmt.Errorf("%w: order is not assigned to this bank", apperr.ErrForbidden)
	}
	if o.Completed() {
		return nil, fmt.Errorf("%w: order is completed", apperr.ErrForbidden)
	}
	if req.hasOwnerFields() {
		return nil, fmt.Errorf("%w: only the owner may edit order details", apperr.ErrForbidden)
	}
	if req.Status == nil {
		return nil, fmt.Errorf("%w: status is required", apperr.ErrValidation)
	}

	to := *req.Status
	if _, ok := model.ParseStatus(string(to)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, to)
	}
	if !CanTransition(o.Kind, o.Status, to) {
		return nil, fmt.Errorf("%w: %s order cannot move from %s to %s", apperr.ErrBadRequest, o.Kind, o.Status, to)
	}

	if to != model.StatusCompleted {
		if len(req.Wastes) > 0 {
			return nil, fmt.Errorf("%w: wastes are accepted only on completion", apperr.ErrValidation)
		}
		return StatusPatch{To: to}, nil
	}

	if len(req.Wastes) == 0 {
		return nil, fmt.Errorf("%w: completed order requires weighed wastes", apperr.ErrValidation)
	}
	items := append([]ledger.Item(nil), req.Wastes...)
	return CompletionPatch{Items: items}, nil
}
