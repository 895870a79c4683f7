package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	return domain.Order{
		ID:          "O1",
		UserID:      "user-1",
		OrderedAt:   time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		Status:      domain.OrderStatusCreated,
		TotalAmount: 20000,
		Lines:       []domain.OrderLine{{ProductID: "P1", Qty: 2, LineAmount: 20000}},
		PaymentID:   "pay-1",
		PaymentLines: []domain.PaymentLine{
			{Kind: "CARD", Amount: 12000},
			{Kind: "POINT", Amount: 8000},
		},
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{name: "no user", mut: func(o *domain.Order) { o.UserID = "" }, want: domain.ErrUserIDRequired},
		{name: "no lines", mut: func(o *domain.Order) { o.Lines = nil }, want: domain.ErrLinesRequired},
		{name: "zero qty", mut: func(o *domain.Order) { o.Lines[0].Qty = 0 }, want: domain.ErrLineQtyInvalid},
		{name: "total mismatch", mut: func(o *domain.Order) { o.TotalAmount = 1 }, want: domain.ErrAmountMismatch},
		{name: "payment mismatch", mut: func(o *domain.Order) { o.PaymentLines[0].Amount = 1 }, want: domain.ErrPaymentMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			if !errors.Is(errors.Join(errs...), tc.want) {
				t.Fatalf("expected %v in %v", tc.want, errs)
			}
		})
	}
}

func TestOrderSnapshotIsDetached(t *testing.T) {
	order := makeOrder()
	snap := order.Snapshot()
	order.Lines[0].Qty = 99

	if snap.Lines[0].Qty != 2 {
		t.Fatalf("snapshot shares memory with order lines")
	}
	if snap.TotalAmount != 20000 || snap.Status != domain.OrderStatusCreated {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to domain.OrderStatus }{
		{"", domain.OrderStatusCreated},
		{domain.OrderStatusCreated, domain.OrderStatusCompleted},
		{domain.OrderStatusCreated, domain.OrderStatusUpdated},
		{domain.OrderStatusUpdated, domain.OrderStatusCancelled},
		{domain.OrderStatusCompleted, domain.OrderStatusDeleted},
		{domain.OrderStatusCancelled, domain.OrderStatusDeleted},
	}
	for _, tc := range legal {
		if !domain.CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to domain.OrderStatus }{
		{domain.OrderStatusDeleted, domain.OrderStatusCompleted},
		{domain.OrderStatusDeleted, domain.OrderStatusCancelled},
		{domain.OrderStatusDeleted, domain.OrderStatusUpdated},
		{domain.OrderStatusCreated, domain.OrderStatusDeleted},
		{domain.OrderStatusUpdated, domain.OrderStatusDeleted},
		{domain.OrderStatusCancelled, domain.OrderStatusCancelled},
		{domain.OrderStatusCompleted, domain.OrderStatusCreated},
	}
	for _, tc := range illegal {
		if domain.CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}
