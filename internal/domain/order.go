package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusNew: заказа ещё нет (нулевое состояние свёртки).
	OrderStatusNew OrderStatus = "NEW"
	// OrderStatusCreated: заказ принят, сага создания ещё идёт.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusUpdated: заказ изменён, сага обновления ещё идёт.
	OrderStatusUpdated OrderStatus = "UPDATED"
	// OrderStatusCompleted: шаг жизненного цикла завершён по всем сервисам.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled: шаг отменён компенсацией.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusDeleted: заказ удалён во всех сервисах.
	OrderStatusDeleted OrderStatus = "DELETED"
)

// orderTransitions: допустимые переходы статуса заказа. DELETED конечен.
// Удаление заказа не меняет статус до завершения саги удаления.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:       {OrderStatusCreated},
	OrderStatusCreated:   {OrderStatusCompleted, OrderStatusCancelled, OrderStatusUpdated},
	OrderStatusUpdated:   {OrderStatusCompleted, OrderStatusCancelled, OrderStatusUpdated},
	OrderStatusCompleted: {OrderStatusUpdated, OrderStatusCancelled, OrderStatusDeleted},
	OrderStatusCancelled: {OrderStatusUpdated, OrderStatusDeleted},
}

// CanTransition сообщает, разрешён ли переход статуса заказа from → to.
func CanTransition(from, to OrderStatus) bool {
	if from == "" {
		from = OrderStatusNew
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderHistoryLimit ограничивает число хранимых снимков для компенсации обновления.
const OrderHistoryLimit = 5

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	LineAmount int64  `json:"line_amount"`
}

// PaymentLine: часть оплаты определённым способом (карта, баллы и т.д.).
type PaymentLine struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// OrderSnapshot хранит прежнее состояние заказа для компенсирующего обновления.
type OrderSnapshot struct {
	OrderedAt    time.Time     `json:"ordered_at"`
	Status       OrderStatus   `json:"status"`
	TotalAmount  int64         `json:"total_amount"`
	Lines        []OrderLine   `json:"lines"`
	PaymentLines []PaymentLine `json:"payment_lines"`
}

// Order агрегирует состояние заказа, его позиции и план оплаты.
type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	OrderedAt    time.Time       `json:"ordered_at"`
	Status       OrderStatus     `json:"status"`
	TotalAmount  int64           `json:"total_amount"`
	Lines        []OrderLine     `json:"lines"`
	PaymentID    string          `json:"payment_id"`
	PaymentLines []PaymentLine   `json:"payment_lines"`
	History      []OrderSnapshot `json:"history,omitempty"`

	// DeletePending выставлен, пока идёт сага удаления.
	DeletePending bool `json:"delete_pending,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exists сообщает, что заказ уже создан.
func (o Order) Exists() bool { return o.ID != "" }

// EntityID реализует Entity.
func (o Order) EntityID() string { return o.ID }

// EntityOrderID реализует Entity.
func (o Order) EntityOrderID() string { return o.ID }

// Snapshot снимает копию изменяемых полей заказа.
func (o Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		OrderedAt:    o.OrderedAt,
		Status:       o.Status,
		TotalAmount:  o.TotalAmount,
		Lines:        CloneLines(o.Lines),
		PaymentLines: ClonePaymentLines(o.PaymentLines),
	}
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if o.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	errs = append(errs, ValidateLines(o.Lines, o.TotalAmount)...)
	if len(o.PaymentLines) > 0 && SumPaymentLines(o.PaymentLines) != o.TotalAmount {
		errs = append(errs, ErrPaymentMismatch)
	}

	return errs
}

// ValidateLines сверяет позиции заказа с итоговой суммой.
func ValidateLines(lines []OrderLine, total int64) []error {
	var errs []error

	if len(lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if total < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	var calc int64
	for _, line := range lines {
		if line.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.LineAmount < 0 {
			errs = append(errs, ErrAmountNegative)
		}
		calc += line.LineAmount
	}
	if calc != total {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// SumPaymentLines возвращает сумму всех частей оплаты.
func SumPaymentLines(lines []PaymentLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Amount
	}
	return sum
}

// CloneLines копирует позиции, чтобы снимки не разделяли память с состоянием.
func CloneLines(lines []OrderLine) []OrderLine {
	if lines == nil {
		return nil
	}
	out := make([]OrderLine, len(lines))
	copy(out, lines)
	return out
}

// ClonePaymentLines копирует части оплаты.
func ClonePaymentLines(lines []PaymentLine) []PaymentLine {
	if lines == nil {
		return nil
	}
	out := make([]PaymentLine, len(lines))
	copy(out, lines)
	return out
}
