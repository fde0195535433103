// Package service реализует бизнес-логику сервиса кофейни.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
	"github.com/mmeshcher/coffeeshop-system/internal/model"
	"github.com/mmeshcher/coffeeshop-system/internal/notification"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Методы, принимающие pgx.Tx, выполняются в транзакции вызывающей стороны:
// атомарность бизнес-операции видна в месте вызова, а не спрятана в хранилище.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error

	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	LockUser(ctx context.Context, tx pgx.Tx, userID int64) error

	GetProducts(ctx context.Context, ids []int64) ([]model.Product, error)

	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	GetOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID string, status model.OrderStatus, completedAt *time.Time) error
	MarkOrderCancelled(ctx context.Context, tx pgx.Tx, orderID string) (bool, error)

	CurrentBalance(ctx context.Context, userID int64) (int64, error)
	AppendBalanceEntry(ctx context.Context, tx pgx.Tx, userID, amountCents int64, typ model.TransactionType, referenceID *string, description string) (int64, error)
	GetBalanceHistory(ctx context.Context, userID int64) ([]model.BalanceTransaction, error)

	GetLoyalty(ctx context.Context, userID int64) (model.LoyaltyAccount, error)
	GetLoyaltyForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (model.LoyaltyAccount, error)
	SaveLoyalty(ctx context.Context, tx pgx.Tx, acc model.LoyaltyAccount) error
}

// Service содержит бизнес-логику сервиса кофейни.
type Service struct {
	repo   Repository
	sink   notification.Sink
	logger *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и приёмником событий.
func NewService(repo Repository, sink notification.Sink, logger *zap.Logger) *Service {
	if sink == nil {
		sink = notification.NoopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		sink:   sink,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (*model.User, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		return nil, err
	}
	return &model.User{ID: id, Login: login, Role: model.RoleUser}, nil
}

// AuthenticateUser проверяет логин и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return nil, errors.New("invalid credentials")
	}

	return u, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	cents, err := s.repo.CurrentBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Balance{Current: float64(cents) / 100}, nil
}

// Deposit пополняет баланс пользователя и возвращает новый остаток.
func (s *Service) Deposit(ctx context.Context, userID int64, amount float64, description string) (*model.Balance, error) {
	cents := int64(math.Round(amount * 100))
	if cents <= 0 {
		return nil, apperr.Validationf("deposit amount must be positive")
	}

	var after int64
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		after, err = s.repo.AppendBalanceEntry(ctx, tx, userID, cents, model.TransactionDeposit, nil, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &model.Balance{Current: float64(after) / 100}, nil
}

// GetBalanceHistory возвращает историю операций с балансом пользователя.
func (s *Service) GetBalanceHistory(ctx context.Context, userID int64) ([]model.BalanceTransaction, error) {
	return s.repo.GetBalanceHistory(ctx, userID)
}

// GetLoyalty возвращает счётчики лояльности пользователя.
func (s *Service) GetLoyalty(ctx context.Context, userID int64) (model.LoyaltyAccount, error) {
	return s.repo.GetLoyalty(ctx, userID)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrder возвращает заказ с позициями. Обычному пользователю доступны
// только его собственные заказы.
func (s *Service) GetOrder(ctx context.Context, orderID string, actorID int64, actorRole model.Role) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorRole != model.RoleAdmin && order.UserID != actorID {
		return nil, apperr.ErrPermissionDenied
	}
	return order, nil
}

type orderEvent struct {
	OrderID     string     `json:"order_id"`
	UserID      int64      `json:"user_id"`
	Status      string     `json:"status"`
	TotalAmount float64    `json:"total_amount"`
	PickupTime  *time.Time `json:"pickup_time,omitempty"`
}

// publishOrderEvent отправляет событие заказа после фиксации транзакции.
// Ошибка доставки логируется и не влияет на результат операции.
func (s *Service) publishOrderEvent(ctx context.Context, topic string, order *model.Order) {
	event := orderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalAmount: float64(order.TotalCents) / 100,
		PickupTime:  order.PickupTime,
	}
	if err := s.sink.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("order event not published",
			zap.String("topic", topic),
			zap.String("orderID", order.ID),
			zap.Error(err),
		)
	}
}
