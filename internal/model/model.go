// Package model содержит доменные сущности сервиса кофейни.
package model

import "time"

// User представляет зарегистрированного пользователя кофейни.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole возвращает роль по строковому значению.
// Неизвестные значения трактуются как обычный пользователь.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodBalance PaymentMethod = "balance"
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodCard    PaymentMethod = "card"
)

// ParsePaymentMethod возвращает способ оплаты по строковому значению.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodBalance, PaymentMethodCash, PaymentMethodCard:
		return PaymentMethod(s), true
	}
	return "", false
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus возвращает статус заказа по строковому значению.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

// IsTerminal сообщает, является ли статус конечным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanUserCancel сообщает, разрешена ли пользовательская отмена заказа
// из данного статуса. Отмена допустима только до начала приготовления.
func (s OrderStatus) CanUserCancel() bool {
	return s == OrderStatusPending || s == OrderStatusAccepted
}

// Order описывает заказ пользователя.
type Order struct {
	ID            string
	UserID        int64
	Status        OrderStatus
	PickupTime    *time.Time
	TotalCents    int64
	PaymentMethod PaymentMethod
	IsFreeCoffee  bool
	Notes         string
	CompletedAt   *time.Time
	CreatedAt     time.Time
	Items         []OrderItem
}

// OrderItem описывает позицию заказа. Цена фиксируется в момент оформления
// и далее никогда не перечитывается из каталога.
type OrderItem struct {
	ID             int64
	OrderID        string
	ProductID      int64
	Quantity       int
	UnitPriceCents int64
	Customization  map[string]string
}

// Product описывает товар каталога, доступный для заказа.
type Product struct {
	ID          int64
	Name        string
	PriceCents  int64
	Category    string
	IsAvailable bool
}

// CategoryCoffee — категория товаров, участвующих в программе лояльности.
const CategoryCoffee = "coffee"

// TransactionType описывает тип записи в истории баланса.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionRefund     TransactionType = "refund"
)

// BalanceTransaction описывает неизменяемую запись истории баланса
// с накопленным остатком после применения записи.
type BalanceTransaction struct {
	ID                int64
	UserID            int64
	AmountCents       int64
	Type              TransactionType
	ReferenceID       *string
	Description       string
	BalanceAfterCents int64
	CreatedAt         time.Time
}

// Balance содержит текущий баланс пользователя для отдачи наружу.
type Balance struct {
	Current float64 `json:"current"`
}
