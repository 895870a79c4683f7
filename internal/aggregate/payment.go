package aggregate

import (
	"fmt"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// DecidePayment проверяет команду платежа и возвращает события.
func DecidePayment(state domain.Payment, cmd domain.Command) ([]domain.Event, error) {
	if cmd.Target().ID == "" {
		return nil, domain.Invalid(domain.ErrPaymentIDRequired)
	}

	if c, ok := cmd.(domain.CreatePayment); ok {
		if c.OrderID == "" {
			return nil, domain.Invalid(domain.ErrOrderIDRequired)
		}
		if state.Exists() {
			return nil, fmt.Errorf("payment %s: %w", c.PaymentID, domain.ErrAlreadyExists)
		}
		if errs := domain.ValidatePaymentLines(c.Lines, c.TotalAmount); len(errs) > 0 {
			return nil, domain.Invalid(errs...)
		}
		return []domain.Event{domain.CreatedPayment{
			PaymentID:   c.PaymentID,
			OrderID:     c.OrderID,
			TotalAmount: c.TotalAmount,
			Lines:       domain.ClonePaymentLines(c.Lines),
		}}, nil
	}

	if !state.Exists() {
		return nil, fmt.Errorf("payment %s: %w", cmd.Target().ID, domain.ErrNotFound)
	}

	switch c := cmd.(type) {
	case domain.UpdatePayment:
		if state.Deleted {
			return nil, fmt.Errorf("payment %s is deleted: %w", c.PaymentID, domain.ErrNotFound)
		}
		if errs := domain.ValidatePaymentLines(c.Lines, c.TotalAmount); len(errs) > 0 {
			return nil, domain.Invalid(errs...)
		}
		return []domain.Event{domain.UpdatedPayment{
			PaymentID:      c.PaymentID,
			OrderID:        state.OrderID,
			TotalAmount:    c.TotalAmount,
			Lines:          domain.ClonePaymentLines(c.Lines),
			IsCompensation: c.IsCompensation,
		}}, nil
	case domain.DeletePayment:
		if state.Deleted {
			return nil, fmt.Errorf("payment %s already deleted: %w", c.PaymentID, domain.ErrNotFound)
		}
		return []domain.Event{domain.DeletedPayment{PaymentID: c.PaymentID, OrderID: state.OrderID}}, nil
	case domain.CancelCreatePayment:
		return []domain.Event{domain.CancelledCreatePayment{PaymentID: c.PaymentID, OrderID: state.OrderID}}, nil
	case domain.CancelUpdatePayment:
		return []domain.Event{domain.CancelledUpdatePayment{PaymentID: c.PaymentID, OrderID: state.OrderID}}, nil
	case domain.CancelDeletePayment:
		return []domain.Event{domain.CancelledDeletePayment{PaymentID: c.PaymentID, OrderID: state.OrderID}}, nil
	default:
		return nil, domain.Invalid(fmt.Errorf("unsupported payment command %s", cmd.CommandName()))
	}
}

// ApplyPayment применяет событие к платежу.
func ApplyPayment(state domain.Payment, ev domain.Event) domain.Payment {
	switch e := ev.(type) {
	case domain.CreatedPayment:
		return domain.Payment{
			ID:          e.PaymentID,
			OrderID:     e.OrderID,
			TotalAmount: e.TotalAmount,
			Status:      domain.PaymentStatusCreated,
			Lines:       domain.ClonePaymentLines(e.Lines),
			Version:     state.Version,
		}
	case domain.UpdatedPayment:
		state.Previous = &domain.PaymentSnapshot{
			TotalAmount: state.TotalAmount,
			Status:      state.Status,
			Lines:       domain.ClonePaymentLines(state.Lines),
		}
		state.TotalAmount = e.TotalAmount
		state.Lines = domain.ClonePaymentLines(e.Lines)
		state.Status = domain.PaymentStatusUpdated
	case domain.DeletedPayment:
		state.Deleted = true
	case domain.CancelledCreatePayment:
		// Отмена создания удаляет платёж целиком.
		return domain.Payment{Version: state.Version}
	case domain.CancelledUpdatePayment:
		if prev := state.Previous; prev != nil {
			state.TotalAmount = prev.TotalAmount
			state.Status = prev.Status
			state.Lines = domain.ClonePaymentLines(prev.Lines)
			state.Previous = nil
		}
	case domain.CancelledDeletePayment:
		state.Deleted = false
	}
	return state
}

// FoldPayment восстанавливает платёж из истории событий.
func FoldPayment(initial domain.Payment, history []domain.Event) domain.Payment {
	return Fold(initial, history, ApplyPayment)
}
