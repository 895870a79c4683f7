package domain

import "time"

// AdjustDirection задаёт направление изменения остатка.
type AdjustDirection string

const (
	AdjustIncrease AdjustDirection = "INCREASE"
	AdjustDecrease AdjustDirection = "DECREASE"
)

// Valid проверяет направление.
func (d AdjustDirection) Valid() bool {
	return d == AdjustIncrease || d == AdjustDecrease
}

// Inventory: складской остаток товара. Qty никогда не бывает отрицательным.
type Inventory struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   int64     `json:"unit_price"`
	Qty         int64     `json:"qty"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (i Inventory) Exists() bool { return i.ProductID != "" }
func (i Inventory) EntityID() string { return i.ProductID }

// EntityOrderID пуст: остаток не привязан к заказу.
func (i Inventory) EntityOrderID() string { return "" }
