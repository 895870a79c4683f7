package aggregate

import (
	"fmt"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// CreateInventory заводит складскую позицию. Событий не выпускает.
func CreateInventory(state domain.Inventory, c domain.CreateInventory) (domain.Inventory, error) {
	if c.ProductID == "" {
		return state, domain.Invalid(domain.ErrProductIDRequired)
	}
	if state.Exists() {
		return state, fmt.Errorf("inventory %s: %w", c.ProductID, domain.ErrAlreadyExists)
	}
	if c.Qty < 0 || c.UnitPrice < 0 {
		return state, domain.Invalid(domain.ErrAmountNegative)
	}
	return domain.Inventory{
		ProductID:   c.ProductID,
		ProductName: c.ProductName,
		UnitPrice:   c.UnitPrice,
		Qty:         c.Qty,
		Version:     state.Version,
	}, nil
}

// AdjustInventory меняет остаток только в состоянии, без событий. DECREASE больше
// текущего остатка не отклоняется, а обнуляет его; clamped сообщает об этом.
func AdjustInventory(state domain.Inventory, dir domain.AdjustDirection, amount int64) (next domain.Inventory, clamped bool, err error) {
	if !state.Exists() {
		return state, false, fmt.Errorf("inventory: %w", domain.ErrNotFound)
	}
	if !dir.Valid() {
		return state, false, domain.Invalid(fmt.Errorf("%w: %q", domain.ErrDirectionInvalid, dir))
	}
	if amount < 0 {
		return state, false, domain.Invalid(domain.ErrAmountNegative)
	}

	switch dir {
	case domain.AdjustIncrease:
		state.Qty += amount
	case domain.AdjustDecrease:
		if amount > state.Qty {
			state.Qty = 0
			return state, true, nil
		}
		state.Qty -= amount
	}
	return state, false, nil
}
