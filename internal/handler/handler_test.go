package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
	"github.com/mmeshcher/coffeeshop-system/internal/middleware"
	"github.com/mmeshcher/coffeeshop-system/internal/model"
	"github.com/mmeshcher/coffeeshop-system/internal/service"
)

type stubService struct {
	registerUser *model.User
	registerErr  error

	authUser *model.User
	authErr  error

	placeOrderResp *model.Order
	placeOrderErr  error

	setStatusResp *model.Order
	setStatusErr  error

	getOrderResp *model.Order
	getOrderErr  error

	ordersResp []model.Order
	ordersErr  error

	balanceResp *model.Balance
	balanceErr  error

	depositResp *model.Balance
	depositErr  error

	historyResp []model.BalanceTransaction
	historyErr  error

	loyaltyResp model.LoyaltyAccount
	loyaltyErr  error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*model.Order, error) {
	return s.placeOrderResp, s.placeOrderErr
}

func (s *stubService) SetOrderStatus(ctx context.Context, orderID, status string, actorID int64, actorRole model.Role) (*model.Order, error) {
	return s.setStatusResp, s.setStatusErr
}

func (s *stubService) GetOrder(ctx context.Context, orderID string, actorID int64, actorRole model.Role) (*model.Order, error) {
	return s.getOrderResp, s.getOrderErr
}

func (s *stubService) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return s.balanceResp, s.balanceErr
}

func (s *stubService) Deposit(ctx context.Context, userID int64, amount float64, description string) (*model.Balance, error) {
	return s.depositResp, s.depositErr
}

func (s *stubService) GetBalanceHistory(ctx context.Context, userID int64) ([]model.BalanceTransaction, error) {
	return s.historyResp, s.historyErr
}

func (s *stubService) GetLoyalty(ctx context.Context, userID int64) (model.LoyaltyAccount, error) {
	return s.loyaltyResp, s.loyaltyErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authorizedRequest(t *testing.T, h *Handler, method, target string, body []byte, role model.Role) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, 1, role)
	req.AddCookie(rec.Result().Cookies()[0])

	return req
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Login: "user", Role: model.RoleUser},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie not set")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{
		registerErr: apperr.ErrConflict,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubService{
		placeOrderResp: &model.Order{
			ID:            "abc",
			UserID:        1,
			Status:        model.OrderStatusPending,
			TotalCents:    3000,
			PaymentMethod: model.PaymentMethodBalance,
			Items: []model.OrderItem{
				{ProductID: 1, Quantity: 12, UnitPriceCents: 250},
			},
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(placeOrderRequest{
		Items:         []orderItemRequest{{ProductID: 1, Quantity: 12}},
		PaymentMethod: "balance",
	})

	req := authorizedRequest(t, h, http.MethodPost, "/api/user/orders", body, model.RoleUser)
	rec := httptest.NewRecorder()

	handler := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handler.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "abc" || resp.TotalAmount != 30 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: apperr.Validationf("bad items"), wantStatus: http.StatusBadRequest},
		{name: "insufficient funds", err: apperr.ErrInsufficientFunds, wantStatus: http.StatusPaymentRequired},
		{name: "policy", err: apperr.ErrNoFreeCoffee, wantStatus: http.StatusConflict},
		{name: "internal", err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{placeOrderErr: tt.err}
			h := newTestHandler(t, svc)

			body, _ := json.Marshal(placeOrderRequest{
				Items:         []orderItemRequest{{ProductID: 1, Quantity: 1}},
				PaymentMethod: "balance",
			})

			req := authorizedRequest(t, h, http.MethodPost, "/api/user/orders", body, model.RoleUser)
			rec := httptest.NewRecorder()

			handler := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
			handler.ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	svc := &stubService{
		ordersResp: []model.Order{},
	}
	h := newTestHandler(t, svc)

	req := authorizedRequest(t, h, http.MethodGet, "/api/user/orders", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	handler := h.authMiddleware.Middleware(http.HandlerFunc(h.GetOrders))
	handler.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/user/orders", nil)
	rec := httptest.NewRecorder()

	handler := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handler.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminRoutes_ForbiddenForUser(t *testing.T) {
	svc := &stubService{
		setStatusResp: &model.Order{ID: "abc", Status: model.OrderStatusPreparing},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(statusRequest{Status: "preparing"})

	req := authorizedRequest(t, h, http.MethodPost, "/api/admin/orders/abc/status", body, model.RoleUser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("user status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}

	req = authorizedRequest(t, h, http.MethodPost, "/api/admin/orders/abc/status", body, model.RoleAdmin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestGetBalanceHistory_JSONResponse(t *testing.T) {
	svc := &stubService{
		historyResp: []model.BalanceTransaction{
			{
				AmountCents:       -3000,
				Type:              model.TransactionWithdrawal,
				BalanceAfterCents: 7000,
			},
		},
	}
	h := newTestHandler(t, svc)

	req := authorizedRequest(t, h, http.MethodGet, "/api/user/balance/history", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	handler := h.authMiddleware.Middleware(http.HandlerFunc(h.GetBalanceHistory))
	handler.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []balanceEntryResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Amount != -30 || resp[0].BalanceAfter != 70 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetLoyalty_Response(t *testing.T) {
	svc := &stubService{
		loyaltyResp: model.LoyaltyAccount{UserID: 1, CoffeeCount: 13, FreeCoffees: 1, UsedCoffees: 1},
	}
	h := newTestHandler(t, svc)

	req := authorizedRequest(t, h, http.MethodGet, "/api/user/loyalty", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	handler := h.authMiddleware.Middleware(http.HandlerFunc(h.GetLoyalty))
	handler.ServeHTTP(rec, req)

	var resp loyaltyResponse
	if err := json.NewDecoder(rec.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AvailableFreeCoffees != 0 {
		t.Fatalf("AvailableFreeCoffees = %d, want 0", resp.AvailableFreeCoffees)
	}
}

func TestCancelOrder_PolicyViolation(t *testing.T) {
	svc := &stubService{
		setStatusErr: apperr.Policyf("order in status preparing cannot be cancelled"),
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authorizedRequest(t, h, http.MethodPost, "/api/user/orders/abc/cancel", nil, model.RoleUser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}
