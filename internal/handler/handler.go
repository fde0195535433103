// Package handler содержит HTTP-обработчики API сервиса кофейни.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
	"github.com/mmeshcher/coffeeshop-system/internal/middleware"
	"github.com/mmeshcher/coffeeshop-system/internal/model"
	"github.com/mmeshcher/coffeeshop-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*model.Order, error)
	SetOrderStatus(ctx context.Context, orderID, status string, actorID int64, actorRole model.Role) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string, actorID int64, actorRole model.Role) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	Deposit(ctx context.Context, userID int64, amount float64, description string) (*model.Balance, error)
	GetBalanceHistory(ctx context.Context, userID int64) ([]model.BalanceTransaction, error)
	GetLoyalty(ctx context.Context, userID int64) (model.LoyaltyAccount, error)
}

// Handler реализует HTTP-обработчики API сервиса кофейни.
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

// writeError транслирует вид ошибки бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInsufficientFunds):
		code = http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrPermissionDenied):
		code = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperr.ErrPolicy), errors.Is(err, apperr.ErrConflict):
		code = http.StatusConflict
	default:
		h.logger.Error("internal error", zap.Error(err))
		code = http.StatusInternalServerError
	}
	http.Error(w, http.StatusText(code), code)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.Role)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.Role)
	w.WriteHeader(http.StatusOK)
}

type orderItemRequest struct {
	ProductID     int64             `json:"product_id"`
	Quantity      int               `json:"quantity"`
	Customization map[string]string `json:"customization,omitempty"`
}

type placeOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	PaymentMethod string             `json:"payment_method"`
	UseFreeCoffee bool               `json:"use_free_coffee"`
	PickupTime    *time.Time         `json:"pickup_time,omitempty"`
	Notes         string             `json:"notes,omitempty"`
}

type orderItemResponse struct {
	ProductID     int64             `json:"product_id"`
	Quantity      int               `json:"quantity"`
	UnitPrice     float64           `json:"unit_price"`
	Customization map[string]string `json:"customization,omitempty"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	IsFreeCoffee  bool                `json:"is_free_coffee"`
	PickupTime    *string             `json:"pickup_time,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	CompletedAt   *string             `json:"completed_at,omitempty"`
	CreatedAt     string              `json:"created_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		Status:        string(o.Status),
		TotalAmount:   float64(o.TotalCents) / 100,
		PaymentMethod: string(o.PaymentMethod),
		IsFreeCoffee:  o.IsFreeCoffee,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
	if o.PickupTime != nil {
		s := o.PickupTime.Format(time.RFC3339)
		resp.PickupTime = &s
	}
	if o.CompletedAt != nil {
		s := o.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     float64(item.UnitPriceCents) / 100,
			Customization: item.Customization,
		})
	}
	return resp
}

// CreateOrder оформляет новый заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]service.OrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.OrderItemRequest{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			Customization: it.Customization,
		})
	}

	order, err := h.service.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:        userID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		UseFreeCoffee: req.UseFreeCoffee,
		PickupTime:    req.PickupTime,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toOrderResponse(order)); err != nil {
		h.logger.Error("encode order response", zap.Error(err))
	}
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	h.writeJSON(w, resp)
}

// GetOrder возвращает заказ текущего пользователя с позициями.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	order, err := h.service.GetOrder(r.Context(), orderIDParam(r), userID, role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, toOrderResponse(order))
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	order, err := h.service.SetOrderStatus(r.Context(), orderIDParam(r), string(model.OrderStatusCancelled), userID, role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, toOrderResponse(order))
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetOrderStatus обновляет статус заказа. Доступно только администратору;
// исходное состояние заказа намеренно не проверяется.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.SetOrderStatus(r.Context(), orderIDParam(r), req.Status, userID, model.RoleAdmin)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, toOrderResponse(order))
}

// GetBalance возвращает баланс текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, balance)
}

type balanceEntryResponse struct {
	Amount       float64 `json:"amount"`
	Type         string  `json:"type"`
	ReferenceID  *string `json:"reference_id,omitempty"`
	Description  string  `json:"description,omitempty"`
	BalanceAfter float64 `json:"balance_after"`
	CreatedAt    string  `json:"created_at"`
}

// GetBalanceHistory возвращает историю операций с балансом текущего пользователя.
func (h *Handler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	history, err := h.service.GetBalanceHistory(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance history error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(history) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]balanceEntryResponse, 0, len(history))
	for _, entry := range history {
		resp = append(resp, balanceEntryResponse{
			Amount:       float64(entry.AmountCents) / 100,
			Type:         string(entry.Type),
			ReferenceID:  entry.ReferenceID,
			Description:  entry.Description,
			BalanceAfter: float64(entry.BalanceAfterCents) / 100,
			CreatedAt:    entry.CreatedAt.Format(time.RFC3339),
		})
	}
	h.writeJSON(w, resp)
}

type loyaltyResponse struct {
	CoffeeCount          int `json:"coffee_count"`
	FreeCoffees          int `json:"free_coffees"`
	UsedCoffees          int `json:"used_coffees"`
	AvailableFreeCoffees int `json:"available_free_coffees"`
}

// GetLoyalty возвращает счётчики лояльности текущего пользователя.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	acc, err := h.service.GetLoyalty(r.Context(), userID)
	if err != nil {
		h.logger.Error("get loyalty error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, loyaltyResponse{
		CoffeeCount:          acc.CoffeeCount,
		FreeCoffees:          acc.FreeCoffees,
		UsedCoffees:          acc.UsedCoffees,
		AvailableFreeCoffees: acc.AvailableFreeCoffees(),
	})
}

type depositRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// Deposit пополняет баланс указанного пользователя. Доступно только администратору.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	targetID, err := userIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	balance, err := h.service.Deposit(r.Context(), targetID, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, balance)
}
