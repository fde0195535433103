package model

import (
	"errors"
	"testing"

	"github.com/mmeshcher/coffeeshop-system/internal/apperr"
)

func TestAddCoffee_Threshold(t *testing.T) {
	acc := LoyaltyAccount{UserID: 1}

	acc = acc.AddCoffee(9)
	if acc.FreeCoffees != 0 {
		t.Fatalf("FreeCoffees = %d after 9 coffees, want 0", acc.FreeCoffees)
	}

	acc = acc.AddCoffee(1)
	if acc.CoffeeCount != 10 {
		t.Fatalf("CoffeeCount = %d, want 10", acc.CoffeeCount)
	}
	if acc.FreeCoffees != 1 {
		t.Fatalf("FreeCoffees = %d after 10 coffees, want 1", acc.FreeCoffees)
	}
	if acc.AvailableFreeCoffees() != 1 {
		t.Fatalf("AvailableFreeCoffees = %d, want 1", acc.AvailableFreeCoffees())
	}
}

func TestAddCoffee_FreeCoffeesNeverDecrease(t *testing.T) {
	acc := LoyaltyAccount{CoffeeCount: 25, FreeCoffees: 4}

	acc = acc.AddCoffee(5)
	if acc.FreeCoffees != 4 {
		t.Fatalf("FreeCoffees = %d, want 4 (must not decrease to floor(30/10)=3)", acc.FreeCoffees)
	}

	acc = acc.AddCoffee(20)
	if acc.FreeCoffees != 5 {
		t.Fatalf("FreeCoffees = %d after 50 coffees, want 5", acc.FreeCoffees)
	}
}

func TestUseFreeCoffee_Walkthrough(t *testing.T) {
	acc := LoyaltyAccount{}

	acc = acc.AddCoffee(10)
	if acc.FreeCoffees != 1 || acc.AvailableFreeCoffees() != 1 {
		t.Fatalf("after AddCoffee(10): %+v", acc)
	}

	acc, err := acc.UseFreeCoffee()
	if err != nil {
		t.Fatalf("UseFreeCoffee error: %v", err)
	}
	if acc.AvailableFreeCoffees() != 0 {
		t.Fatalf("AvailableFreeCoffees = %d after use, want 0", acc.AvailableFreeCoffees())
	}

	_, err = acc.UseFreeCoffee()
	if !errors.Is(err, apperr.ErrNoFreeCoffee) {
		t.Fatalf("expected ErrNoFreeCoffee, got %v", err)
	}
	if !errors.Is(err, apperr.ErrPolicy) {
		t.Fatalf("ErrNoFreeCoffee must be a policy violation, got %v", err)
	}
}

func TestReverseFreeCoffee(t *testing.T) {
	acc := LoyaltyAccount{FreeCoffees: 2, UsedCoffees: 1}

	acc = acc.ReverseFreeCoffee()
	if acc.UsedCoffees != 0 {
		t.Fatalf("UsedCoffees = %d, want 0", acc.UsedCoffees)
	}

	acc = acc.ReverseFreeCoffee()
	if acc.UsedCoffees != 0 {
		t.Fatalf("UsedCoffees = %d, must not go negative", acc.UsedCoffees)
	}
	if acc.AvailableFreeCoffees() != 2 {
		t.Fatalf("AvailableFreeCoffees = %d, want 2", acc.AvailableFreeCoffees())
	}
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "accepted", "preparing", "ready", "completed", "cancelled"} {
		if _, ok := ParseOrderStatus(s); !ok {
			t.Fatalf("ParseOrderStatus(%q) = false, want true", s)
		}
	}
	if _, ok := ParseOrderStatus("shipped"); ok {
		t.Fatalf("ParseOrderStatus must reject unknown status")
	}
}

func TestCanUserCancel(t *testing.T) {
	cancellable := map[OrderStatus]bool{
		OrderStatusPending:   true,
		OrderStatusAccepted:  true,
		OrderStatusPreparing: false,
		OrderStatusReady:     false,
		OrderStatusCompleted: false,
		OrderStatusCancelled: false,
	}
	for status, want := range cancellable {
		if got := status.CanUserCancel(); got != want {
			t.Fatalf("CanUserCancel(%s) = %v, want %v", status, got, want)
		}
	}
}
