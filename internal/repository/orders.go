package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
	"github.com/mmeshcher/coffeeshop-system/internal/model"
)

// GetProducts возвращает товары каталога по списку идентификаторов.
// Отсутствующие идентификаторы просто не попадают в результат.
func (r *PostgresRepository) GetProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price, category, is_available FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Category, &p.IsAvailable); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateOrder сохраняет заказ вместе с позициями внутри транзакции вызывающей стороны.
func (r *PostgresRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, status, pickup_time, total_amount, payment_method, is_free_coffee, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.UserID, string(order.Status), order.PickupTime,
		order.TotalCents, string(order.PaymentMethod), order.IsFreeCoffee, order.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		var customization []byte
		if len(item.Customization) > 0 {
			customization, err = json.Marshal(item.Customization)
			if err != nil {
				return fmt.Errorf("marshal customization: %w", err)
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price, customization)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPriceCents, customization,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

const orderColumns = `id, user_id, status, pickup_time, total_amount, payment_method, is_free_coffee, notes, completed_at, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o             model.Order
		status        string
		paymentMethod string
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.PickupTime, &o.TotalCents,
		&paymentMethod, &o.IsFreeCoffee, &o.Notes, &o.CompletedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	return &o, nil
}

// GetOrder возвращает заказ с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.getOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *PostgresRepository) getOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, customization
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var (
			item          model.OrderItem
			customization []byte
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPriceCents, &customization); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if len(customization) > 0 {
			if err := json.Unmarshal(customization, &item.Customization); err != nil {
				return nil, fmt.Errorf("unmarshal customization: %w", err)
			}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetOrderForUpdate возвращает заказ без позиций с блокировкой строки до конца
// транзакции, сериализуя параллельные смены статуса одного заказа.
func (r *PostgresRepository) GetOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*model.Order, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("get order for update: %w", err)
	}

	return order, nil
}

// GetOrdersByUser возвращает заказы пользователя без позиций, начиная с самых свежих.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus обновляет статус заказа и, при необходимости, время выдачи.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID string, status model.OrderStatus, completedAt *time.Time) error {
	var err error
	if completedAt != nil {
		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, completed_at = $3 WHERE id = $1`,
			orderID, string(status), *completedAt,
		)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1`,
			orderID, string(status),
		)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// MarkOrderCancelled переводит заказ в статус cancelled и сообщает, была ли
// смена применена этим вызовом. Повторные вызовы возвращают false: это
// гарантия однократности возвратов при дублирующихся запросах отмены.
func (r *PostgresRepository) MarkOrderCancelled(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1 AND status <> $2`,
		orderID, string(model.OrderStatusCancelled),
	)
	if err != nil {
		return false, fmt.Errorf("mark order cancelled: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}
