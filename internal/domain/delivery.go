package domain

import "time"

// DeliveryStatus описывает этап доставки.
type DeliveryStatus string

const (
	DeliveryStatusCreated    DeliveryStatus = "CREATED"
	DeliveryStatusDelivering DeliveryStatus = "DELIVERING"
	DeliveryStatusDelivered  DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled  DeliveryStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusCreated, DeliveryStatusDelivering, DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	default:
		return false
	}
}

// Delivery описывает доставку заказа.
type Delivery struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Status    DeliveryStatus  `json:"status"`
	Previous  *DeliveryStatus `json:"previous,omitempty"`
	Deleted   bool            `json:"deleted"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (d Delivery) Exists() bool { return d.ID != "" }
func (d Delivery) EntityID() string { return d.ID }
func (d Delivery) EntityOrderID() string { return d.OrderID }

// DeliveryIDFor строит идентификатор доставки по заказу.
func DeliveryIDFor(orderID string) string { return "SHIP_" + orderID }
