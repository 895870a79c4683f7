package aggregate

import (
	"fmt"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// DecideDelivery проверяет команду доставки и возвращает события.
func DecideDelivery(state domain.Delivery, cmd domain.Command) ([]domain.Event, error) {
	if cmd.Target().ID == "" {
		return nil, domain.Invalid(domain.ErrDeliveryIDRequired)
	}

	if c, ok := cmd.(domain.CreateDelivery); ok {
		if c.OrderID == "" {
			return nil, domain.Invalid(domain.ErrOrderIDRequired)
		}
		if state.Exists() {
			return nil, fmt.Errorf("delivery %s: %w", c.DeliveryID, domain.ErrAlreadyExists)
		}
		status := c.Status
		if status == "" {
			status = domain.DeliveryStatusCreated
		}
		if !status.Valid() {
			return nil, domain.Invalid(fmt.Errorf("%w: %s", domain.ErrStatusInvalid, status))
		}
		return []domain.Event{domain.CreatedDelivery{DeliveryID: c.DeliveryID, OrderID: c.OrderID, Status: status}}, nil
	}

	if !state.Exists() {
		return nil, fmt.Errorf("delivery %s: %w", cmd.Target().ID, domain.ErrNotFound)
	}

	switch c := cmd.(type) {
	case domain.UpdateDelivery:
		if state.Deleted {
			return nil, fmt.Errorf("delivery %s is deleted: %w", c.DeliveryID, domain.ErrNotFound)
		}
		if !c.Status.Valid() {
			return nil, domain.Invalid(fmt.Errorf("%w: %s", domain.ErrStatusInvalid, c.Status))
		}
		return []domain.Event{domain.UpdatedDelivery{DeliveryID: c.DeliveryID, OrderID: state.OrderID, Status: c.Status}}, nil
	case domain.DeleteDelivery:
		if state.Deleted {
			return nil, fmt.Errorf("delivery %s already deleted: %w", c.DeliveryID, domain.ErrNotFound)
		}
		return []domain.Event{domain.DeletedDelivery{DeliveryID: c.DeliveryID, OrderID: state.OrderID, OrderDelete: c.OrderDelete}}, nil
	case domain.CancelCreateDelivery:
		return []domain.Event{domain.CancelledCreateDelivery{DeliveryID: c.DeliveryID, OrderID: state.OrderID}}, nil
	case domain.CancelUpdateDelivery:
		return []domain.Event{domain.CancelledUpdateDelivery{DeliveryID: c.DeliveryID, OrderID: state.OrderID}}, nil
	case domain.CancelDeleteDelivery:
		return []domain.Event{domain.CancelledDeleteDelivery{DeliveryID: c.DeliveryID, OrderID: state.OrderID}}, nil
	default:
		return nil, domain.Invalid(fmt.Errorf("unsupported delivery command %s", cmd.CommandName()))
	}
}

// ApplyDelivery применяет событие к доставке.
func ApplyDelivery(state domain.Delivery, ev domain.Event) domain.Delivery {
	switch e := ev.(type) {
	case domain.CreatedDelivery:
		return domain.Delivery{ID: e.DeliveryID, OrderID: e.OrderID, Status: e.Status, Version: state.Version}
	case domain.UpdatedDelivery:
		prev := state.Status
		state.Previous = &prev
		state.Status = e.Status
	case domain.DeletedDelivery:
		state.Deleted = true
	case domain.CancelledCreateDelivery:
		return domain.Delivery{Version: state.Version}
	case domain.CancelledUpdateDelivery:
		if state.Previous != nil {
			state.Status = *state.Previous
			state.Previous = nil
		}
	case domain.CancelledDeleteDelivery:
		state.Deleted = false
	}
	return state
}

// FoldDelivery восстанавливает доставку из истории событий.
func FoldDelivery(initial domain.Delivery, history []domain.Event) domain.Delivery {
	return Fold(initial, history, ApplyDelivery)
}

// EntersDelivering сообщает, что событие переводит доставку в DELIVERING.
// Такой переход допускается только после успешного списания остатков.
func EntersDelivering(state domain.Delivery, ev domain.Event) bool {
	switch e := ev.(type) {
	case domain.CreatedDelivery:
		return e.Status == domain.DeliveryStatusDelivering
	case domain.UpdatedDelivery:
		return e.Status == domain.DeliveryStatusDelivering && state.Status != domain.DeliveryStatusDelivering
	case domain.CancelledUpdateDelivery:
		return state.Previous != nil && *state.Previous == domain.DeliveryStatusDelivering &&
			state.Status != domain.DeliveryStatusDelivering
	case domain.CancelledDeleteDelivery:
		return state.Deleted && state.Status == domain.DeliveryStatusDelivering
	}
	return false
}

// LeavesDelivering сообщает, что событие снимает зарезервированный остаток.
func LeavesDelivering(state domain.Delivery, ev domain.Event) bool {
	if state.Status != domain.DeliveryStatusDelivering || state.Deleted {
		return false
	}
	switch e := ev.(type) {
	case domain.DeletedDelivery, domain.CancelledCreateDelivery:
		return true
	case domain.UpdatedDelivery:
		return e.Status == domain.DeliveryStatusCancelled
	case domain.CancelledUpdateDelivery:
		return state.Previous != nil && *state.Previous != domain.DeliveryStatusDelivering
	}
	return false
}
