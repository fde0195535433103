package model

import "github.com/mmeshcher/coffeeshop-system/internal/apperr"

// FreeCoffeeThreshold — количество купленных кофе, дающее один бесплатный.
const FreeCoffeeThreshold = 10

// LoyaltyAccount описывает счётчики программы лояльности пользователя.
// Методы переходов чистые: возвращают новое состояние, запись в хранилище
// выполняет вызывающая сторона в рамках своей транзакции.
type LoyaltyAccount struct {
	UserID      int64
	CoffeeCount int
	FreeCoffees int
	UsedCoffees int
}

// AddCoffee начисляет n купленных кофе и пересчитывает заработанные
// бесплатные. FreeCoffees никогда не уменьшается.
func (a LoyaltyAccount) AddCoffee(n int) LoyaltyAccount {
	if n < 1 {
		return a
	}
	a.CoffeeCount += n
	if earned := a.CoffeeCount / FreeCoffeeThreshold; earned > a.FreeCoffees {
		a.FreeCoffees = earned
	}
	return a
}

// UseFreeCoffee расходует один доступный бесплатный кофе.
func (a LoyaltyAccount) UseFreeCoffee() (LoyaltyAccount, error) {
	if a.AvailableFreeCoffees() <= 0 {
		return a, apperr.ErrNoFreeCoffee
	}
	a.UsedCoffees++
	return a, nil
}

// ReverseFreeCoffee возвращает один использованный бесплатный кофе.
// Применяется только при отмене заказа-списания.
func (a LoyaltyAccount) ReverseFreeCoffee() LoyaltyAccount {
	if a.UsedCoffees > 0 {
		a.UsedCoffees--
	}
	return a
}

// AvailableFreeCoffees возвращает число доступных бесплатных кофе.
func (a LoyaltyAccount) AvailableFreeCoffees() int {
	return a.FreeCoffees - a.UsedCoffees
}
