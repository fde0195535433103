package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
	"github.com/mmeshcher/coffeeshop-system/internal/model"
	"github.com/mmeshcher/coffeeshop-system/internal/notification"
	"github.com/mmeshcher/coffeeshop-system/internal/validation"
)

// OrderItemRequest описывает позицию оформляемого заказа.
type OrderItemRequest struct {
	ProductID     int64
	Quantity      int
	Customization map[string]string
}

// PlaceOrderRequest описывает запрос на оформление заказа.
type PlaceOrderRequest struct {
	UserID        int64
	Items         []OrderItemRequest
	PaymentMethod string
	UseFreeCoffee bool
	PickupTime    *time.Time
	Notes         string
}

// PlaceOrder оформляет заказ: проверяет позиции по каталогу, фиксирует цены,
// применяет бесплатный кофе, списывает оплату с баланса и начисляет
// лояльность. Заказ, позиции, запись истории баланса и счётчики лояльности
// записываются одной транзакцией; событие о заказе публикуется после фиксации.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*model.Order, error) {
	items := make([]validation.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, validation.ItemInput{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			Customization: it.Customization,
		})
	}

	if !validation.ValidateOrderItems(items) {
		return nil, apperr.Validationf("order must contain at least one item with positive quantity")
	}

	method, ok := model.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, apperr.Validationf("unknown payment method %q", req.PaymentMethod)
	}

	ids := validation.DistinctProductIDs(items)
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(ids) {
		return nil, apperr.Validationf("order contains unknown products")
	}

	productByID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		if !p.IsAvailable {
			return nil, apperr.Validationf("product %d is unavailable", p.ID)
		}
		productByID[p.ID] = p
	}

	var (
		totalCents int64
		coffeeQty  int
	)
	orderItems := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		p := productByID[it.ProductID]
		totalCents += int64(it.Quantity) * p.PriceCents
		if p.Category == model.CategoryCoffee {
			coffeeQty += it.Quantity
		}
		orderItems = append(orderItems, model.OrderItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: p.PriceCents,
			Customization:  it.Customization,
		})
	}

	if req.UseFreeCoffee && (len(req.Items) != 1 || req.Items[0].Quantity != 1) {
		return nil, apperr.Policyf("free coffee covers exactly one item")
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Status:        model.OrderStatusPending,
		PickupTime:    req.PickupTime,
		TotalCents:    totalCents,
		PaymentMethod: method,
		IsFreeCoffee:  req.UseFreeCoffee,
		Notes:         req.Notes,
		CreatedAt:     time.Now(),
		Items:         orderItems,
	}

	err = s.repo.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.LockUser(ctx, tx, req.UserID); err != nil {
			return err
		}

		if req.UseFreeCoffee {
			acc, err := s.repo.GetLoyaltyForUpdate(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			acc, err = acc.UseFreeCoffee()
			if err != nil {
				return err
			}
			if err := s.repo.SaveLoyalty(ctx, tx, acc); err != nil {
				return err
			}
			order.TotalCents = 0
		}

		if err := s.repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}

		if order.PaymentMethod == model.PaymentMethodBalance && order.TotalCents > 0 {
			ref := order.ID
			_, err := s.repo.AppendBalanceEntry(ctx, tx, req.UserID, -order.TotalCents,
				model.TransactionWithdrawal, &ref, "payment for order")
			if err != nil {
				return err
			}
		}

		if !order.IsFreeCoffee && coffeeQty > 0 {
			acc, err := s.repo.GetLoyaltyForUpdate(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			if err := s.repo.SaveLoyalty(ctx, tx, acc.AddCoffee(coffeeQty)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvent(ctx, notification.TopicOrderCreated, order)

	return order, nil
}

// SetOrderStatus переводит заказ в новый статус. Пользователю доступна только
// отмена собственного заказа до начала приготовления; администратор меняет
// статус без ограничений на исходное состояние (унаследованная особенность
// поведения, сохранена намеренно). Отмена применяет возвраты ровно один раз:
// возврат средств при оплате с баланса и возврат бесплатного кофе — в одной
// транзакции со сменой статуса.
func (s *Service) SetOrderStatus(ctx context.Context, orderID, status string, actorID int64, actorRole model.Role) (*model.Order, error) {
	newStatus, ok := model.ParseOrderStatus(status)
	if !ok {
		return nil, apperr.Validationf("unknown order status %q", status)
	}

	var (
		order   *model.Order
		changed bool
	)
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.repo.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if actorRole != model.RoleAdmin {
			if newStatus != model.OrderStatusCancelled {
				return apperr.ErrPermissionDenied
			}
			if order.UserID != actorID {
				return apperr.ErrPermissionDenied
			}
			if !order.Status.CanUserCancel() {
				return apperr.Policyf("order in status %s cannot be cancelled", order.Status)
			}
		}

		switch newStatus {
		case model.OrderStatusCancelled:
			changed, err = s.cancelOrder(ctx, tx, order)
			return err
		case model.OrderStatusCompleted:
			if order.Status == model.OrderStatusCompleted {
				return nil
			}
			var completedAt *time.Time
			if order.CompletedAt == nil {
				now := time.Now()
				completedAt = &now
				order.CompletedAt = &now
			}
			if err := s.repo.UpdateOrderStatus(ctx, tx, orderID, newStatus, completedAt); err != nil {
				return err
			}
			order.Status = newStatus
			changed = true
			return nil
		default:
			if err := s.repo.UpdateOrderStatus(ctx, tx, orderID, newStatus, nil); err != nil {
				return err
			}
			order.Status = newStatus
			changed = true
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publishOrderEvent(ctx, notification.TopicOrderUpdated, order)
	}

	return order, nil
}

// cancelOrder выполняет отмену под защитой от повторного применения:
// смена статуса срабатывает не более одного раза, возвраты привязаны к ней.
func (s *Service) cancelOrder(ctx context.Context, tx pgx.Tx, order *model.Order) (bool, error) {
	flipped, err := s.repo.MarkOrderCancelled(ctx, tx, order.ID)
	if err != nil {
		return false, err
	}
	if !flipped {
		// Заказ уже отменён: повторная отмена завершается успехом без эффектов.
		order.Status = model.OrderStatusCancelled
		return false, nil
	}

	needsRefund := order.PaymentMethod == model.PaymentMethodBalance && order.TotalCents > 0
	if needsRefund || order.IsFreeCoffee {
		if err := s.repo.LockUser(ctx, tx, order.UserID); err != nil {
			return false, err
		}
	}

	if needsRefund {
		ref := order.ID
		_, err := s.repo.AppendBalanceEntry(ctx, tx, order.UserID, order.TotalCents,
			model.TransactionRefund, &ref, "refund for cancelled order")
		if err != nil {
			return false, err
		}
	}

	if order.IsFreeCoffee {
		acc, err := s.repo.GetLoyaltyForUpdate(ctx, tx, order.UserID)
		if err != nil {
			return false, err
		}
		if err := s.repo.SaveLoyalty(ctx, tx, acc.ReverseFreeCoffee()); err != nil {
			return false, err
		}
	}

	order.Status = model.OrderStatusCancelled
	return true, nil
}
