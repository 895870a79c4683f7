package domain

import "time"

// Event: факт изменения состояния агрегата. Каждое событие несёт
// идентификатор агрегата-владельца и коррелирующий orderId.
type Event interface {
	EventName() string
	AggregateID() string
	CorrelationID() string
}

// События заказа.
type (
	CreatedOrder struct {
		OrderID      string        `json:"order_id"`
		UserID       string        `json:"user_id"`
		OrderedAt    time.Time     `json:"ordered_at"`
		TotalAmount  int64         `json:"total_amount"`
		Lines        []OrderLine   `json:"lines"`
		PaymentID    string        `json:"payment_id"`
		PaymentLines []PaymentLine `json:"payment_lines"`
	}
	UpdatedOrder struct {
		OrderID        string        `json:"order_id"`
		OrderedAt      time.Time     `json:"ordered_at"`
		TotalAmount    int64         `json:"total_amount"`
		Lines          []OrderLine   `json:"lines"`
		PaymentID      string        `json:"payment_id"`
		PaymentLines   []PaymentLine `json:"payment_lines"`
		IsCompensation bool          `json:"is_compensation"`
	}
	DeletedOrder struct {
		OrderID string `json:"order_id"`
	}
	CompletedCreateOrder struct {
		OrderID string `json:"order_id"`
	}
	CompletedUpdateOrder struct {
		OrderID string `json:"order_id"`
	}
	CompletedDeleteOrder struct {
		OrderID string `json:"order_id"`
	}
	CancelledCreateOrder struct {
		OrderID string `json:"order_id"`
	}
	// CancelledUpdateOrder несёт снимок, из которого строится компенсирующее обновление.
	CancelledUpdateOrder struct {
		OrderID string         `json:"order_id"`
		Restore *OrderSnapshot `json:"restore,omitempty"`
	}
	CancelledDeleteOrder struct {
		OrderID string `json:"order_id"`
	}
	ForcedCancelOrder struct {
		OrderID    string `json:"order_id"`
		DeliveryID string `json:"delivery_id"`
	}
)

func (CreatedOrder) EventName() string { return "CreatedOrder" }
func (UpdatedOrder) EventName() string { return "UpdatedOrder" }
func (DeletedOrder) EventName() string { return "DeletedOrder" }
func (CompletedCreateOrder) EventName() string { return "CompletedCreateOrder" }
func (CompletedUpdateOrder) EventName() string { return "CompletedUpdateOrder" }
func (CompletedDeleteOrder) EventName() string { return "CompletedDeleteOrder" }
func (CancelledCreateOrder) EventName() string { return "CancelledCreateOrder" }
func (CancelledUpdateOrder) EventName() string { return "CancelledUpdateOrder" }
func (CancelledDeleteOrder) EventName() string { return "CancelledDeleteOrder" }
func (ForcedCancelOrder) EventName() string { return "ForcedCancelOrder" }

func (e CreatedOrder) AggregateID() string { return e.OrderID }
func (e UpdatedOrder) AggregateID() string { return e.OrderID }
func (e DeletedOrder) AggregateID() string { return e.OrderID }
func (e CompletedCreateOrder) AggregateID() string { return e.OrderID }
func (e CompletedUpdateOrder) AggregateID() string { return e.OrderID }
func (e CompletedDeleteOrder) AggregateID() string { return e.OrderID }
func (e CancelledCreateOrder) AggregateID() string { return e.OrderID }
func (e CancelledUpdateOrder) AggregateID() string { return e.OrderID }
func (e CancelledDeleteOrder) AggregateID() string { return e.OrderID }
func (e ForcedCancelOrder) AggregateID() string { return e.OrderID }

func (e CreatedOrder) CorrelationID() string { return e.OrderID }
func (e UpdatedOrder) CorrelationID() string { return e.OrderID }
func (e DeletedOrder) CorrelationID() string { return e.OrderID }
func (e CompletedCreateOrder) CorrelationID() string { return e.OrderID }
func (e CompletedUpdateOrder) CorrelationID() string { return e.OrderID }
func (e CompletedDeleteOrder) CorrelationID() string { return e.OrderID }
func (e CancelledCreateOrder) CorrelationID() string { return e.OrderID }
func (e CancelledUpdateOrder) CorrelationID() string { return e.OrderID }
func (e CancelledDeleteOrder) CorrelationID() string { return e.OrderID }
func (e ForcedCancelOrder) CorrelationID() string { return e.OrderID }

// События платежа.
type (
	CreatedPayment struct {
		PaymentID   string        `json:"payment_id"`
		OrderID     string        `json:"order_id"`
		TotalAmount int64         `json:"total_amount"`
		Lines       []PaymentLine `json:"lines"`
	}
	UpdatedPayment struct {
		PaymentID      string        `json:"payment_id"`
		OrderID        string        `json:"order_id"`
		TotalAmount    int64         `json:"total_amount"`
		Lines          []PaymentLine `json:"lines"`
		IsCompensation bool          `json:"is_compensation"`
	}
	DeletedPayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
	CancelledCreatePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
	CancelledUpdatePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
	CancelledDeletePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
)

func (CreatedPayment) EventName() string { return "CreatedPayment" }
func (UpdatedPayment) EventName() string { return "UpdatedPayment" }
func (DeletedPayment) EventName() string { return "DeletedPayment" }
func (CancelledCreatePayment) EventName() string { return "CancelledCreatePayment" }
func (CancelledUpdatePayment) EventName() string { return "CancelledUpdatePayment" }
func (CancelledDeletePayment) EventName() string { return "CancelledDeletePayment" }

func (e CreatedPayment) AggregateID() string { return e.PaymentID }
func (e UpdatedPayment) AggregateID() string { return e.PaymentID }
func (e DeletedPayment) AggregateID() string { return e.PaymentID }
func (e CancelledCreatePayment) AggregateID() string { return e.PaymentID }
func (e CancelledUpdatePayment) AggregateID() string { return e.PaymentID }
func (e CancelledDeletePayment) AggregateID() string { return e.PaymentID }

func (e CreatedPayment) CorrelationID() string { return e.OrderID }
func (e UpdatedPayment) CorrelationID() string { return e.OrderID }
func (e DeletedPayment) CorrelationID() string { return e.OrderID }
func (e CancelledCreatePayment) CorrelationID() string { return e.OrderID }
func (e CancelledUpdatePayment) CorrelationID() string { return e.OrderID }
func (e CancelledDeletePayment) CorrelationID() string { return e.OrderID }

// События доставки.
type (
	CreatedDelivery struct {
		DeliveryID string         `json:"delivery_id"`
		OrderID    string         `json:"order_id"`
		Status     DeliveryStatus `json:"status"`
	}
	UpdatedDelivery struct {
		DeliveryID string         `json:"delivery_id"`
		OrderID    string         `json:"order_id"`
		Status     DeliveryStatus `json:"status"`
	}
	// DeletedDelivery.OrderDelete: доставка удалена в рамках удаления заказа.
	DeletedDelivery struct {
		DeliveryID  string `json:"delivery_id"`
		OrderID     string `json:"order_id"`
		OrderDelete bool   `json:"order_delete,omitempty"`
	}
	CancelledCreateDelivery struct {
		DeliveryID string `json:"delivery_id"`
		OrderID    string `json:"order_id"`
	}
	CancelledUpdateDelivery struct {
		DeliveryID string `json:"delivery_id"`
		OrderID    string `json:"order_id"`
	}
	CancelledDeleteDelivery struct {
		DeliveryID string `json:"delivery_id"`
		OrderID    string `json:"order_id"`
	}
)

func (CreatedDelivery) EventName() string { return "CreatedDelivery" }
func (UpdatedDelivery) EventName() string { return "UpdatedDelivery" }
func (DeletedDelivery) EventName() string { return "DeletedDelivery" }
func (CancelledCreateDelivery) EventName() string { return "CancelledCreateDelivery" }
func (CancelledUpdateDelivery) EventName() string { return "CancelledUpdateDelivery" }
func (CancelledDeleteDelivery) EventName() string { return "CancelledDeleteDelivery" }

func (e CreatedDelivery) AggregateID() string { return e.DeliveryID }
func (e UpdatedDelivery) AggregateID() string { return e.DeliveryID }
func (e DeletedDelivery) AggregateID() string { return e.DeliveryID }
func (e CancelledCreateDelivery) AggregateID() string { return e.DeliveryID }
func (e CancelledUpdateDelivery) AggregateID() string { return e.DeliveryID }
func (e CancelledDeleteDelivery) AggregateID() string { return e.DeliveryID }

func (e CreatedDelivery) CorrelationID() string { return e.OrderID }
func (e UpdatedDelivery) CorrelationID() string { return e.OrderID }
func (e DeletedDelivery) CorrelationID() string { return e.OrderID }
func (e CancelledCreateDelivery) CorrelationID() string { return e.OrderID }
func (e CancelledUpdateDelivery) CorrelationID() string { return e.OrderID }
func (e CancelledDeleteDelivery) CorrelationID() string { return e.OrderID }

// События отчёта.
type (
	CreatedReport struct {
		ReportID   string `json:"report_id"`
		OrderID    string `json:"order_id"`
		PaymentID  string `json:"payment_id,omitempty"`
		DeliveryID string `json:"delivery_id,omitempty"`
	}
	DeletedReport struct {
		ReportID string `json:"report_id"`
		OrderID  string `json:"order_id"`
	}
	CancelledCreateReport struct {
		ReportID string `json:"report_id"`
		OrderID  string `json:"order_id"`
	}
	CancelledDeleteReport struct {
		ReportID string `json:"report_id"`
		OrderID  string `json:"order_id"`
	}
)

func (CreatedReport) EventName() string { return "CreatedReport" }
func (DeletedReport) EventName() string { return "DeletedReport" }
func (CancelledCreateReport) EventName() string { return "CancelledCreateReport" }
func (CancelledDeleteReport) EventName() string { return "CancelledDeleteReport" }

func (e CreatedReport) AggregateID() string { return e.ReportID }
func (e DeletedReport) AggregateID() string { return e.ReportID }
func (e CancelledCreateReport) AggregateID() string { return e.ReportID }
func (e CancelledDeleteReport) AggregateID() string { return e.ReportID }

func (e CreatedReport) CorrelationID() string { return e.OrderID }
func (e DeletedReport) CorrelationID() string { return e.OrderID }
func (e CancelledCreateReport) CorrelationID() string { return e.OrderID }
func (e CancelledDeleteReport) CorrelationID() string { return e.OrderID }

// Failed: общий вид Failed*-событий: агрегат не смог применить команду
// (нет сущности, ошибка сохранения). Потребляется только сагой-владельцем.
type Failed struct {
	Command        string        `json:"command"`
	Aggregate      AggregateKind `json:"aggregate"`
	ID             string        `json:"aggregate_id"`
	OrderID        string        `json:"order_id"`
	Reason         string        `json:"reason"`
	IsCompensation bool          `json:"is_compensation,omitempty"`
}

func (e Failed) EventName() string { return "Failed" + e.Command }
func (e Failed) AggregateID() string { return e.ID }
func (e Failed) CorrelationID() string { return e.OrderID }

// FailedFor строит Failed-событие для команды.
func FailedFor(cmd Command, orderID string, cause error) Failed {
	key := cmd.Target()
	f := Failed{
		Command:   cmd.CommandName(),
		Aggregate: key.Kind,
		ID:        key.ID,
		OrderID:   orderID,
	}
	if cause != nil {
		f.Reason = cause.Error()
	}
	if u, ok := cmd.(UpdatePayment); ok {
		f.IsCompensation = u.IsCompensation
	}
	if u, ok := cmd.(UpdateOrder); ok {
		f.IsCompensation = u.IsCompensation
	}
	return f
}
