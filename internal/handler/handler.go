// Package handler содержит HTTP-обработчики API сервиса банка отходов.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/ledger"
	"github.com/mmeshcher/wastebank/internal/middleware"
	"github.com/mmeshcher/wastebank/internal/model"
	"github.com/mmeshcher/wastebank/internal/orderflow"
	"github.com/mmeshcher/wastebank/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, actor model.Actor, cmd service.CreateOrderCommand) (*model.Order, error)
	PatchOrder(ctx context.Context, kind model.OrderKind, id string, actor model.Actor, req orderflow.Request) (*model.Order, error)
	DeleteOrder(ctx context.Context, kind model.OrderKind, id string, actor model.Actor) error
	GetOrder(ctx context.Context, kind model.OrderKind, id string, actor model.Actor) (*model.Order, error)
	ListOrders(ctx context.Context, kind model.OrderKind, actor model.Actor, q service.ListQuery) ([]model.Order, error)
	Ledger(ctx context.Context, userID string) (*service.LedgerView, error)
	Wastes(ctx context.Context) ([]model.WasteType, error)
	Levels(ctx context.Context) ([]model.LevelTier, error)
}

// Handler реализует HTTP-обработчики API сервиса банка отходов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// Контактные данные называются requester у вывоза и sender у сдачи.
type contactFields struct {
	Requester *model.Contact `json:"requester,omitempty"`
	Sender    *model.Contact `json:"sender,omitempty"`
}

func (c contactFields) forKind(kind model.OrderKind) (*model.Contact, error) {
	switch kind {
	case model.KindPickup:
		if c.Sender != nil {
			return nil, fmt.Errorf("%w: pickup orders take requester, not sender", apperr.ErrValidation)
		}
		return c.Requester, nil
	default:
		if c.Requester != nil {
			return nil, fmt.Errorf("%w: deliver orders take sender, not requester", apperr.ErrValidation)
		}
		return c.Sender, nil
	}
}

type createOrderRequest struct {
	contactFields
	BankID        model.BankRef `json:"bankId"`
	Schedule      time.Time     `json:"schedule"`
	WasteImageRef string        `json:"wasteImageRef"`
}

type patchOrderRequest struct {
	contactFields
	BankID        *string       `json:"bankId"`
	Schedule      *time.Time    `json:"schedule"`
	WasteImageRef *string       `json:"wasteImageRef"`
	Status        *model.Status `json:"status"`
	Wastes        []ledger.Item `json:"wastes"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", apperr.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отвечает статусом из таксономии ошибок. Внутренние ошибки логируются и не раскрываются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fields ...zap.Field) {
	status := apperr.HTTPStatus(err)
	if apperr.IsInternal(err) {
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			fields = append(fields, zap.String("actor", actor.ActorID()))
		}
		fields = append(fields, zap.Error(err), zap.String("path", r.URL.Path))
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", append(fields, zap.Error(err))...)
	}
	http.Error(w, http.StatusText(status), status)
}

func actorOrFail(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return actor, ok
}

// CreateOrder создаёт заказ текущего пользователя.
func (h *Handler) CreateOrder(kind model.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrFail(w, r)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}

		contact, err := req.forKind(kind)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if contact == nil {
			h.writeError(w, r, fmt.Errorf("%w: contact is required", apperr.ErrValidation))
			return
		}

		o, err := h.service.CreateOrder(r.Context(), actor, service.CreateOrderCommand{
			Kind:          kind,
			Bank:          req.BankID,
			Contact:       *contact,
			Schedule:      req.Schedule,
			WasteImageRef: req.WasteImageRef,
		})
		if err != nil {
			h.writeError(w, r, err, zap.String("kind", string(kind)))
			return
		}

		writeJSON(w, http.StatusCreated, createOrderResponse{ID: o.ID})
	}
}

// PatchOrder изменяет заказ. Набор допустимых полей зависит от роли вызывающего.
func (h *Handler) PatchOrder(kind model.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrFail(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		var req patchOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}

		contact, err := req.forKind(kind)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		o, err := h.service.PatchOrder(r.Context(), kind, id, actor, orderflow.Request{
			BankID:        req.BankID,
			Contact:       contact,
			Schedule:      req.Schedule,
			WasteImageRef: req.WasteImageRef,
			Status:        req.Status,
			Wastes:        req.Wastes,
		})
		if err != nil {
			h.writeError(w, r, err, zap.String("order", id))
			return
		}

		writeJSON(w, http.StatusOK, o)
	}
}

// DeleteOrder удаляет необработанный заказ владельца.
func (h *Handler) DeleteOrder(kind model.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrFail(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		if err := h.service.DeleteOrder(r.Context(), kind, id, actor); err != nil {
			h.writeError(w, r, err, zap.String("order", id))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// GetOrder возвращает заказ в области видимости вызывающего.
func (h *Handler) GetOrder(kind model.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrFail(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		o, err := h.service.GetOrder(r.Context(), kind, id, actor)
		if err != nil {
			h.writeError(w, r, err, zap.String("order", id))
			return
		}

		writeJSON(w, http.StatusOK, o)
	}
}

// activeFilter выбирает в параметре status все незавершённые заказы.
const activeFilter = "active"

func parseListQuery(r *http.Request) (service.ListQuery, error) {
	var q service.ListQuery

	switch status := r.URL.Query().Get("status"); status {
	case "":
	case activeFilter:
		q.ActiveOnly = true
	default:
		st, ok := model.ParseStatus(status)
		if !ok {
			return q, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, status)
		}
		q.Status = st
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, fmt.Errorf("%w: page must be a positive integer", apperr.ErrValidation)
		}
		q.Page = page
	}

	return q, nil
}

// ListOrders возвращает страницу заказов вызывающего.
func (h *Handler) ListOrders(kind model.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrFail(w, r)
		if !ok {
			return
		}

		q, err := parseListQuery(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		orders, err := h.service.ListOrders(r.Context(), kind, actor, q)
		if err != nil {
			h.writeError(w, r, err, zap.String("kind", string(kind)))
			return
		}

		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

// GetLedger возвращает баланс баллов и уровень текущего пользователя.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	view, err := h.service.Ledger(r.Context(), actor.ActorID())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetWastes возвращает справочник отходов.
func (h *Handler) GetWastes(w http.ResponseWriter, r *http.Request) {
	wastes, err := h.service.Wastes(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wastes)
}

// GetLevels возвращает таблицу уровней.
func (h *Handler) GetLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.Levels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

