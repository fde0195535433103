package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
	"github.com/mmeshcher/coffeeshop-system/internal/model"
)

// CurrentBalance возвращает текущий баланс пользователя в копейках:
// balance_after самой свежей записи истории либо 0, если записей нет.
func (r *PostgresRepository) CurrentBalance(ctx context.Context, userID int64) (int64, error) {
	return currentBalance(ctx, r.pool, userID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func currentBalance(ctx context.Context, q queryRower, userID int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx,
		`SELECT balance_after
		 FROM balances
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select current balance: %w", err)
	}
	return balance, nil
}

// AppendBalanceEntry добавляет запись в историю баланса и возвращает остаток
// после её применения. История только пополняется: записи никогда не
// изменяются и не удаляются. Списание, уводящее остаток в минус, отклоняется.
// Вызывается только внутри транзакции с удержанной блокировкой пользователя.
func (r *PostgresRepository) AppendBalanceEntry(ctx context.Context, tx pgx.Tx, userID, amountCents int64, typ model.TransactionType, referenceID *string, description string) (int64, error) {
	current, err := currentBalance(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	after := current + amountCents
	if after < 0 {
		return 0, fmt.Errorf("%w: balance %d, requested %d", apperr.ErrInsufficientFunds, current, -amountCents)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO balances (user_id, amount, type, reference_id, description, balance_after)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, amountCents, string(typ), referenceID, description, after,
	)
	if err != nil {
		return 0, fmt.Errorf("insert balance entry: %w", err)
	}

	return after, nil
}

// GetBalanceHistory возвращает историю операций с балансом пользователя,
// начиная с самых свежих.
func (r *PostgresRepository) GetBalanceHistory(ctx context.Context, userID int64) ([]model.BalanceTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, type, reference_id, description, balance_after, created_at
		 FROM balances
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select balance history: %w", err)
	}
	defer rows.Close()

	var res []model.BalanceTransaction
	for rows.Next() {
		var (
			entry       model.BalanceTransaction
			typ         string
			referenceID *string
			createdAt   time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.AmountCents, &typ, &referenceID, &entry.Description, &entry.BalanceAfterCents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan balance entry: %w", err)
		}
		entry.Type = model.TransactionType(typ)
		entry.ReferenceID = referenceID
		entry.CreatedAt = createdAt
		res = append(res, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
