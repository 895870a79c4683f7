package domain

import "time"

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"
	PaymentStatusUpdated   PaymentStatus = "UPDATED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentSnapshot: предыдущее состояние платежа для отмены обновления.
type PaymentSnapshot struct {
	TotalAmount int64         `json:"total_amount"`
	Status      PaymentStatus `json:"status"`
	Lines       []PaymentLine `json:"lines"`
}

// Payment описывает платёж, связанный с заказом.
type Payment struct {
	ID          string           `json:"id"`
	OrderID     string           `json:"order_id"`
	TotalAmount int64            `json:"total_amount"`
	Status      PaymentStatus    `json:"status"`
	Lines       []PaymentLine    `json:"lines"`
	Previous    *PaymentSnapshot `json:"previous,omitempty"`
	Deleted     bool             `json:"deleted"`
	Version     int64            `json:"version"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Exists сообщает, что платёж создан (удалённый мягко тоже существует).
func (p Payment) Exists() bool { return p.ID != "" }

// EntityID реализует Entity.
func (p Payment) EntityID() string { return p.ID }

// EntityOrderID реализует Entity.
func (p Payment) EntityOrderID() string { return p.OrderID }

// ValidatePaymentLines проверяет, что сумма частей оплаты равна итогу.
func ValidatePaymentLines(lines []PaymentLine, total int64) []error {
	var errs []error
	if total < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	for _, l := range lines {
		if l.Amount < 0 {
			errs = append(errs, ErrAmountNegative)
		}
	}
	if SumPaymentLines(lines) != total {
		errs = append(errs, ErrPaymentMismatch)
	}
	return errs
}
