package aggregate

import (
	"fmt"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// DecideOrder проверяет команду заказа и возвращает события.
func DecideOrder(state domain.Order, cmd domain.Command) ([]domain.Event, error) {
	if cmd.Target().ID == "" {
		return nil, domain.Invalid(domain.ErrOrderIDRequired)
	}

	if c, ok := cmd.(domain.CreateOrder); ok {
		return decideCreateOrder(state, c)
	}
	if !state.Exists() {
		return nil, fmt.Errorf("order %s: %w", cmd.Target().ID, domain.ErrNotFound)
	}

	switch c := cmd.(type) {
	case domain.UpdateOrder:
		return decideUpdateOrder(state, c)
	case domain.DeleteOrder:
		if state.DeletePending {
			return nil, fmt.Errorf("order %s delete already in progress: %w", c.OrderID, domain.ErrInvalidTransition)
		}
		if err := checkTransition(state, cmd, domain.OrderStatusDeleted); err != nil {
			return nil, err
		}
		return []domain.Event{domain.DeletedOrder{OrderID: c.OrderID}}, nil
	case domain.CompleteOrderCreate:
		if c.Status != "" && c.Status != domain.OrderStatusCompleted {
			return nil, domain.Invalid(fmt.Errorf("%w: %s", domain.ErrStatusInvalid, c.Status))
		}
		if err := checkTransition(state, cmd, domain.OrderStatusCompleted, domain.OrderStatusCreated); err != nil {
			return nil, err
		}
		return []domain.Event{domain.CompletedCreateOrder{OrderID: c.OrderID}}, nil
	case domain.CancelCreateOrder:
		if err := checkTransition(state, cmd, domain.OrderStatusCancelled, domain.OrderStatusCreated); err != nil {
			return nil, err
		}
		return []domain.Event{domain.CancelledCreateOrder{OrderID: c.OrderID}}, nil
	case domain.CompleteOrderUpdate:
		if err := checkTransition(state, cmd, domain.OrderStatusCompleted, domain.OrderStatusUpdated); err != nil {
			return nil, err
		}
		return []domain.Event{domain.CompletedUpdateOrder{OrderID: c.OrderID}}, nil
	case domain.CancelUpdateOrder:
		if err := checkTransition(state, cmd, domain.OrderStatusCancelled, domain.OrderStatusUpdated); err != nil {
			return nil, err
		}
		ev := domain.CancelledUpdateOrder{OrderID: c.OrderID}
		if n := len(state.History); n > 0 {
			last := state.History[n-1]
			ev.Restore = &last
		}
		return []domain.Event{ev}, nil
	case domain.CompleteOrderDelete:
		if !state.DeletePending {
			return nil, fmt.Errorf("order %s has no delete in progress: %w", c.OrderID, domain.ErrInvalidTransition)
		}
		if err := checkTransition(state, cmd, domain.OrderStatusDeleted); err != nil {
			return nil, err
		}
		return []domain.Event{domain.CompletedDeleteOrder{OrderID: c.OrderID}}, nil
	case domain.CancelDeleteOrder:
		// Отмена удаления возвращает заказ в статус до удаления: он не менялся.
		if !state.DeletePending {
			return nil, fmt.Errorf("order %s has no delete in progress: %w", c.OrderID, domain.ErrInvalidTransition)
		}
		return []domain.Event{domain.CancelledDeleteOrder{OrderID: c.OrderID}}, nil
	case domain.ForceCancelOrder:
		// Пока идёт сага удаления, судьбу заказа решает она.
		if state.DeletePending || !domain.CanTransition(state.Status, domain.OrderStatusCancelled) {
			return nil, nil
		}
		return []domain.Event{domain.ForcedCancelOrder{OrderID: c.OrderID, DeliveryID: c.DeliveryID}}, nil
	default:
		return nil, domain.Invalid(fmt.Errorf("unsupported order command %s", cmd.CommandName()))
	}
}

// checkTransition проверяет исходный статус (если from задан) и ребро перехода в to.
func checkTransition(state domain.Order, cmd domain.Command, to domain.OrderStatus, from ...domain.OrderStatus) error {
	allowed := len(from) == 0
	for _, status := range from {
		if state.Status == status {
			allowed = true
			break
		}
	}
	if !allowed || !domain.CanTransition(state.Status, to) {
		return fmt.Errorf("order %s: %s from %s: %w", state.ID, cmd.CommandName(), state.Status, domain.ErrInvalidTransition)
	}
	return nil
}

func decideCreateOrder(state domain.Order, c domain.CreateOrder) ([]domain.Event, error) {
	if state.Exists() {
		return nil, fmt.Errorf("order %s: %w", c.OrderID, domain.ErrAlreadyExists)
	}
	draft := domain.Order{
		ID:           c.OrderID,
		UserID:       c.UserID,
		TotalAmount:  c.TotalAmount,
		Lines:        c.Lines,
		PaymentLines: c.PaymentLines,
	}
	errs := draft.ValidateInvariants()
	if c.PaymentID == "" {
		errs = append(errs, domain.ErrPaymentIDRequired)
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}
	return []domain.Event{domain.CreatedOrder{
		OrderID:      c.OrderID,
		UserID:       c.UserID,
		OrderedAt:    c.OrderedAt,
		TotalAmount:  c.TotalAmount,
		Lines:        domain.CloneLines(c.Lines),
		PaymentID:    c.PaymentID,
		PaymentLines: domain.ClonePaymentLines(c.PaymentLines),
	}}, nil
}

func decideUpdateOrder(state domain.Order, c domain.UpdateOrder) ([]domain.Event, error) {
	if state.DeletePending {
		return nil, fmt.Errorf("order %s is being deleted: %w", c.OrderID, domain.ErrInvalidTransition)
	}
	// Компенсирующее обновление приходит после CancelledUpdateOrder и статус не меняет.
	if c.IsCompensation {
		if state.Status != domain.OrderStatusCancelled {
			return nil, fmt.Errorf("order %s: compensating update from %s: %w", c.OrderID, state.Status, domain.ErrInvalidTransition)
		}
	} else if err := checkTransition(state, c, domain.OrderStatusUpdated); err != nil {
		return nil, err
	}

	// Компенсирующее обновление возвращает позиции целиком, обычное сливает по productId.
	lines := domain.CloneLines(c.Lines)
	if !c.IsCompensation {
		lines = MergeLines(state.Lines, c.Lines)
	}
	plan := c.PaymentLines
	if len(plan) == 0 {
		plan = state.PaymentLines
	}

	errs := domain.ValidateLines(lines, c.TotalAmount)
	if len(plan) > 0 && domain.SumPaymentLines(plan) != c.TotalAmount {
		errs = append(errs, domain.ErrPaymentMismatch)
	}
	if len(errs) > 0 {
		return nil, domain.Invalid(errs...)
	}

	orderedAt := c.OrderedAt
	if orderedAt.IsZero() {
		orderedAt = state.OrderedAt
	}
	return []domain.Event{domain.UpdatedOrder{
		OrderID:        c.OrderID,
		OrderedAt:      orderedAt,
		TotalAmount:    c.TotalAmount,
		Lines:          lines,
		PaymentID:      state.PaymentID,
		PaymentLines:   domain.ClonePaymentLines(plan),
		IsCompensation: c.IsCompensation,
	}}, nil
}

// MergeLines применяет изменения позиций по productId: известные позиции получают
// новые qty и сумму, неизвестные добавляются в конец.
func MergeLines(current, changes []domain.OrderLine) []domain.OrderLine {
	merged := domain.CloneLines(current)
	index := make(map[string]int, len(merged))
	for i, line := range merged {
		index[line.ProductID] = i
	}
	for _, change := range changes {
		if i, ok := index[change.ProductID]; ok {
			merged[i].Qty = change.Qty
			merged[i].LineAmount = change.LineAmount
			continue
		}
		index[change.ProductID] = len(merged)
		merged = append(merged, change)
	}
	return merged
}

// ApplyOrder применяет событие к состоянию заказа.
func ApplyOrder(state domain.Order, ev domain.Event) domain.Order {
	switch e := ev.(type) {
	case domain.CreatedOrder:
		return domain.Order{
			ID:           e.OrderID,
			UserID:       e.UserID,
			OrderedAt:    e.OrderedAt,
			Status:       domain.OrderStatusCreated,
			TotalAmount:  e.TotalAmount,
			Lines:        domain.CloneLines(e.Lines),
			PaymentID:    e.PaymentID,
			PaymentLines: domain.ClonePaymentLines(e.PaymentLines),
			Version:      state.Version,
		}
	case domain.UpdatedOrder:
		if e.IsCompensation {
			state.Status = domain.OrderStatusCancelled
		} else {
			state.History = pushSnapshot(state.History, state.Snapshot())
			state.Status = domain.OrderStatusUpdated
		}
		state.OrderedAt = e.OrderedAt
		state.TotalAmount = e.TotalAmount
		state.Lines = domain.CloneLines(e.Lines)
		state.PaymentLines = domain.ClonePaymentLines(e.PaymentLines)
	case domain.DeletedOrder:
		// Статус не меняется до завершения саги удаления.
		state.DeletePending = true
	case domain.CancelledDeleteOrder:
		state.DeletePending = false
	case domain.CompletedCreateOrder, domain.CompletedUpdateOrder:
		state.Status = domain.OrderStatusCompleted
	case domain.CompletedDeleteOrder:
		state.DeletePending = false
		state.Status = domain.OrderStatusDeleted
	case domain.CancelledCreateOrder, domain.ForcedCancelOrder:
		state.Status = domain.OrderStatusCancelled
	case domain.CancelledUpdateOrder:
		state.Status = domain.OrderStatusCancelled
		if e.Restore != nil && len(state.History) > 0 {
			state.History = append([]domain.OrderSnapshot(nil), state.History[:len(state.History)-1]...)
		}
	}
	return state
}

// FoldOrder восстанавливает заказ из истории событий.
func FoldOrder(initial domain.Order, history []domain.Event) domain.Order {
	return Fold(initial, history, ApplyOrder)
}

// CompensatingUpdate строит команду отката обновления из снимка.
func CompensatingUpdate(orderID string, snap domain.OrderSnapshot) domain.UpdateOrder {
	return domain.UpdateOrder{
		OrderID:        orderID,
		OrderedAt:      snap.OrderedAt,
		TotalAmount:    snap.TotalAmount,
		Lines:          domain.CloneLines(snap.Lines),
		PaymentLines:   domain.ClonePaymentLines(snap.PaymentLines),
		IsCompensation: true,
	}
}

func pushSnapshot(history []domain.OrderSnapshot, snap domain.OrderSnapshot) []domain.OrderSnapshot {
	next := make([]domain.OrderSnapshot, 0, len(history)+1)
	next = append(next, history...)
	next = append(next, snap)
	if over := len(next) - domain.OrderHistoryLimit; over > 0 {
		next = next[over:]
	}
	return next
}
