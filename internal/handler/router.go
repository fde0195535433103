package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/coffeeshop-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса кофейни.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Post("/orders/{orderID}/cancel", h.CancelOrder)

			r.Get("/balance", h.GetBalance)
			r.Get("/balance/history", h.GetBalanceHistory)

			r.Get("/loyalty", h.GetLoyalty)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.RequireAdmin)

		r.Post("/orders/{orderID}/status", h.SetOrderStatus)
		r.Post("/users/{userID}/deposit", h.Deposit)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func orderIDParam(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}
