package domain

import "time"

// Report: сводная проекция заказа, которую ведёт сервис отчётов.
type Report struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"order_id"`
	UserID         string         `json:"user_id"`
	PaymentID      string         `json:"payment_id"`
	DeliveryID     string         `json:"delivery_id"`
	OrderStatus    OrderStatus    `json:"order_status"`
	TotalAmount    int64          `json:"total_amount"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Lines          []OrderLine    `json:"lines"`
	Deleted        bool           `json:"deleted"`
	Version        int64          `json:"version"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (r Report) Exists() bool { return r.ID != "" }
func (r Report) EntityID() string { return r.ID }
func (r Report) EntityOrderID() string { return r.OrderID }

// Correlation возвращает карту идентификаторов сервисов по заказу.
func (r Report) Correlation() Correlation {
	return Correlation{
		OrderID:    r.OrderID,
		PaymentID:  r.PaymentID,
		DeliveryID: r.DeliveryID,
		ReportID:   r.ID,
	}
}
