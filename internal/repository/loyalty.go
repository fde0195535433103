package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coffeeshop-system/internal/model"
)

// GetLoyalty возвращает счётчики лояльности пользователя. Если записи ещё
// нет, возвращаются нулевые счётчики без создания строки.
func (r *PostgresRepository) GetLoyalty(ctx context.Context, userID int64) (model.LoyaltyAccount, error) {
	acc := model.LoyaltyAccount{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT coffee_count, free_coffees, used_coffees FROM loyalty WHERE user_id = $1`,
		userID,
	).Scan(&acc.CoffeeCount, &acc.FreeCoffees, &acc.UsedCoffees)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return acc, nil
		}
		return acc, fmt.Errorf("select loyalty: %w", err)
	}
	return acc, nil
}

// GetLoyaltyForUpdate возвращает счётчики лояльности с блокировкой строки до
// конца транзакции. Запись создаётся лениво с нулевыми счётчиками при первом
// обращении.
func (r *PostgresRepository) GetLoyaltyForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (model.LoyaltyAccount, error) {
	acc := model.LoyaltyAccount{UserID: userID}

	_, err := tx.Exec(ctx,
		`INSERT INTO loyalty (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return acc, fmt.Errorf("init loyalty: %w", err)
	}

	err = tx.QueryRow(ctx,
		`SELECT coffee_count, free_coffees, used_coffees FROM loyalty WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&acc.CoffeeCount, &acc.FreeCoffees, &acc.UsedCoffees)
	if err != nil {
		return acc, fmt.Errorf("select loyalty for update: %w", err)
	}

	return acc, nil
}

// SaveLoyalty сохраняет счётчики лояльности внутри транзакции вызывающей стороны.
func (r *PostgresRepository) SaveLoyalty(ctx context.Context, tx pgx.Tx, acc model.LoyaltyAccount) error {
	_, err := tx.Exec(ctx,
		`UPDATE loyalty SET coffee_count = $2, free_coffees = $3, used_coffees = $4 WHERE user_id = $1`,
		acc.UserID, acc.CoffeeCount, acc.FreeCoffees, acc.UsedCoffees,
	)
	if err != nil {
		return fmt.Errorf("update loyalty: %w", err)
	}
	return nil
}
