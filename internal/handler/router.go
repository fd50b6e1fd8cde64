package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/wastebank/internal/middleware"
	"github.com/mmeshcher/wastebank/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса банка отходов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/wastes", h.GetWastes)
		r.Get("/levels", h.GetLevels)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/pickups", h.orderRoutes(model.KindPickup))
			r.Route("/delivers", h.orderRoutes(model.KindDeliver))

			r.With(custommiddleware.RequireRole(model.RoleUser)).Get("/ledger", h.GetLedger)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func (h *Handler) orderRoutes(kind model.OrderKind) func(chi.Router) {
	return func(r chi.Router) {
		userOnly := custommiddleware.RequireRole(model.RoleUser)

		r.With(userOnly).Post("/", h.CreateOrder(kind))
		r.Get("/", h.ListOrders(kind))
		r.Get("/{id}", h.GetOrder(kind))
		r.Patch("/{id}", h.PatchOrder(kind))
		r.With(userOnly).Delete("/{id}", h.DeleteOrder(kind))
	}
}
