// Package apperr содержит классификацию ошибок бизнес-логики кофейни.
package apperr

import (
	"errors"
	"fmt"
)

// ErrValidation возвращается при некорректных или неполных входных данных.
var (
	ErrValidation = errors.New("validation error")
	// ErrPolicy возвращается, когда корректный запрос нарушает бизнес-правило.
	ErrPolicy = errors.New("policy violation")
	// ErrInsufficientFunds возвращается при недостатке средств на балансе.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound возвращается, если запрошенная сущность не существует.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied возвращается при обращении к чужой или закрытой сущности.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConflict возвращается при нарушении уникальности данных.
	ErrConflict = errors.New("conflict")
)

// ErrNoFreeCoffee возвращается при попытке использовать бесплатный кофе,
// когда доступных начислений нет. Является частным случаем ErrPolicy.
var ErrNoFreeCoffee = fmt.Errorf("%w: no free coffee available", ErrPolicy)

// Validationf оборачивает сообщение в ошибку валидации.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Policyf оборачивает сообщение в ошибку нарушения бизнес-правила.
func Policyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPolicy, fmt.Sprintf(format, args...))
}
