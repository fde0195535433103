// Package validation содержит функции валидации входных данных.
package validation

import (
	"github.com/mmeshcher/coffeeshop-system/internal/model"
)

// ItemInput описывает позицию заказа во входящем запросе.
type ItemInput struct {
	ProductID     int64
	Quantity      int
	Customization map[string]string
}

// ValidateOrderItems проверяет корректность списка позиций заказа.
func ValidateOrderItems(items []ItemInput) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity < 1 {
			return false
		}
	}
	return true
}

// IsValidPaymentMethod проверяет, что способ оплаты входит в допустимый набор.
func IsValidPaymentMethod(s string) bool {
	_, ok := model.ParsePaymentMethod(s)
	return ok
}

// DistinctProductIDs возвращает список идентификаторов товаров без повторов,
// сохраняя порядок первого вхождения.
func DistinctProductIDs(items []ItemInput) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
