package domain

import "time"

// AggregateKind: тип агрегата, которому адресована команда.
type AggregateKind string

const (
	KindOrder     AggregateKind = "order"
	KindPayment   AggregateKind = "payment"
	KindDelivery  AggregateKind = "delivery"
	KindInventory AggregateKind = "inventory"
	KindReport    AggregateKind = "report"
)

// AggregateKey адресует один экземпляр агрегата. Команды с одинаковым ключом
// обрабатываются строго по одной.
type AggregateKey struct {
	Kind AggregateKind
	ID   string
}

func (k AggregateKey) String() string { return string(k.Kind) + ":" + k.ID }

// Command: намерение изменить состояние одного агрегата.
type Command interface {
	CommandName() string
	Target() AggregateKey
	// CorrelationID: orderId, к которому относится команда (может быть пустым).
	CorrelationID() string
}

// Команды заказа.
type (
	CreateOrder struct {
		OrderID      string        `json:"order_id"`
		UserID       string        `json:"user_id"`
		OrderedAt    time.Time     `json:"ordered_at"`
		TotalAmount  int64         `json:"total_amount"`
		Lines        []OrderLine   `json:"lines"`
		PaymentID    string        `json:"payment_id"`
		PaymentLines []PaymentLine `json:"payment_lines"`
	}
	UpdateOrder struct {
		OrderID        string        `json:"order_id"`
		OrderedAt      time.Time     `json:"ordered_at"`
		TotalAmount    int64         `json:"total_amount"`
		Lines          []OrderLine   `json:"lines"`
		PaymentLines   []PaymentLine `json:"payment_lines"`
		IsCompensation bool          `json:"is_compensation"`
	}
	DeleteOrder struct {
		OrderID string `json:"order_id"`
	}
	CompleteOrderCreate struct {
		OrderID string      `json:"order_id"`
		Status  OrderStatus `json:"status"`
	}
	CompleteOrderUpdate struct {
		OrderID string `json:"order_id"`
	}
	CompleteOrderDelete struct {
		OrderID string `json:"order_id"`
	}
	CancelCreateOrder struct {
		OrderID string `json:"order_id"`
	}
	CancelUpdateOrder struct {
		OrderID string `json:"order_id"`
	}
	CancelDeleteOrder struct {
		OrderID string `json:"order_id"`
	}
	// ForceCancelOrder переводит заказ в CANCELLED после удаления доставки.
	ForceCancelOrder struct {
		OrderID    string `json:"order_id"`
		DeliveryID string `json:"delivery_id"`
	}
)

func (CreateOrder) CommandName() string { return "CreateOrder" }
func (UpdateOrder) CommandName() string { return "UpdateOrder" }
func (DeleteOrder) CommandName() string { return "DeleteOrder" }
func (CompleteOrderCreate) CommandName() string { return "CompleteOrderCreate" }
func (CompleteOrderUpdate) CommandName() string { return "CompleteOrderUpdate" }
func (CompleteOrderDelete) CommandName() string { return "CompleteOrderDelete" }
func (CancelCreateOrder) CommandName() string { return "CancelCreateOrder" }
func (CancelUpdateOrder) CommandName() string { return "CancelUpdateOrder" }
func (CancelDeleteOrder) CommandName() string { return "CancelDeleteOrder" }
func (ForceCancelOrder) CommandName() string { return "ForceCancelOrder" }

func (c CreateOrder) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c UpdateOrder) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c DeleteOrder) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c CompleteOrderCreate) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c CompleteOrderUpdate) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c CompleteOrderDelete) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c CancelCreateOrder) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c CancelUpdateOrder) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c CancelDeleteOrder) Target() AggregateKey { return OrderKey(c.OrderID) }
func (c ForceCancelOrder) Target() AggregateKey { return OrderKey(c.OrderID) }

// Команды платежа.
type (
	CreatePayment struct {
		PaymentID   string        `json:"payment_id"`
		OrderID     string        `json:"order_id"`
		TotalAmount int64         `json:"total_amount"`
		Lines       []PaymentLine `json:"lines"`
	}
	UpdatePayment struct {
		PaymentID      string        `json:"payment_id"`
		OrderID        string        `json:"order_id"`
		TotalAmount    int64         `json:"total_amount"`
		Lines          []PaymentLine `json:"lines"`
		IsCompensation bool          `json:"is_compensation"`
	}
	DeletePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
	CancelCreatePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
	CancelUpdatePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
	CancelDeletePayment struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
	}
)

func (CreatePayment) CommandName() string { return "CreatePayment" }
func (UpdatePayment) CommandName() string { return "UpdatePayment" }
func (DeletePayment) CommandName() string { return "DeletePayment" }
func (CancelCreatePayment) CommandName() string { return "CancelCreatePayment" }
func (CancelUpdatePayment) CommandName() string { return "CancelUpdatePayment" }
func (CancelDeletePayment) CommandName() string { return "CancelDeletePayment" }

func (c CreatePayment) Target() AggregateKey { return PaymentKey(c.PaymentID) }
func (c UpdatePayment) Target() AggregateKey { return PaymentKey(c.PaymentID) }
func (c DeletePayment) Target() AggregateKey { return PaymentKey(c.PaymentID) }
func (c CancelCreatePayment) Target() AggregateKey { return PaymentKey(c.PaymentID) }
func (c CancelUpdatePayment) Target() AggregateKey { return PaymentKey(c.PaymentID) }
func (c CancelDeletePayment) Target() AggregateKey { return PaymentKey(c.PaymentID) }

// Команды доставки.
type (
	CreateDelivery struct {
		DeliveryID string         `json:"delivery_id"`
		OrderID    string         `json:"order_id"`
		Status     DeliveryStatus `json:"status"`
	}
	// UpdateDelivery: точка входа перед переходом в DELIVERING.
	UpdateDelivery struct {
		DeliveryID string         `json:"delivery_id"`
		OrderID    string         `json:"order_id"`
		Status     DeliveryStatus `json:"status"`
	}
	// DeleteDelivery с OrderDelete выпускает сага удаления заказа.
	DeleteDelivery struct {
		DeliveryID  string `json:"delivery_id"`
		OrderID     string `json:"order_id"`
		OrderDelete bool   `json:"order_delete,omitempty"`
	}
	CancelCreateDelivery struct {
		DeliveryID string `json:"delivery_id"`
		OrderID    string `json:"order_id"`
	}
	CancelUpdateDelivery struct {
		DeliveryID string `json:"delivery_id"`
		OrderID    string `json:"order_id"`
	}
	CancelDeleteDelivery struct {
		DeliveryID string `json:"delivery_id"`
		OrderID    string `json:"order_id"`
	}
)

func (CreateDelivery) CommandName() string { return "CreateDelivery" }
func (UpdateDelivery) CommandName() string { return "UpdateDelivery" }
func (DeleteDelivery) CommandName() string { return "DeleteDelivery" }
func (CancelCreateDelivery) CommandName() string { return "CancelCreateDelivery" }
func (CancelUpdateDelivery) CommandName() string { return "CancelUpdateDelivery" }
func (CancelDeleteDelivery) CommandName() string { return "CancelDeleteDelivery" }

func (c CreateDelivery) Target() AggregateKey { return DeliveryKey(c.DeliveryID) }
func (c UpdateDelivery) Target() AggregateKey { return DeliveryKey(c.DeliveryID) }
func (c DeleteDelivery) Target() AggregateKey { return DeliveryKey(c.DeliveryID) }
func (c CancelCreateDelivery) Target() AggregateKey { return DeliveryKey(c.DeliveryID) }
func (c CancelUpdateDelivery) Target() AggregateKey { return DeliveryKey(c.DeliveryID) }
func (c CancelDeleteDelivery) Target() AggregateKey { return DeliveryKey(c.DeliveryID) }

// Команды склада.
type (
	CreateInventory struct {
		ProductID   string `json:"product_id"`
		ProductName string `json:"product_name"`
		UnitPrice   int64  `json:"unit_price"`
		Qty         int64  `json:"qty"`
	}
	// AdjustInventoryQty меняет остаток; OrderID нужен только для аудита.
	AdjustInventoryQty struct {
		ProductID string          `json:"product_id"`
		OrderID   string          `json:"order_id,omitempty"`
		Direction AdjustDirection `json:"direction"`
		Amount    int64           `json:"amount"`
	}
)

func (CreateInventory) CommandName() string { return "CreateInventory" }
func (AdjustInventoryQty) CommandName() string { return "AdjustInventoryQty" }

func (c CreateInventory) Target() AggregateKey { return InventoryKey(c.ProductID) }
func (c AdjustInventoryQty) Target() AggregateKey { return InventoryKey(c.ProductID) }

// Команды отчёта.
type (
	// CreateReport создаёт или обновляет сводную проекцию заказа.
	CreateReport struct {
		ReportID   string `json:"report_id"`
		OrderID    string `json:"order_id"`
		PaymentID  string `json:"payment_id,omitempty"`
		DeliveryID string `json:"delivery_id,omitempty"`
	}
	DeleteReport struct {
		ReportID string `json:"report_id"`
		OrderID  string `json:"order_id"`
	}
	CancelCreateReport struct {
		ReportID string `json:"report_id"`
		OrderID  string `json:"order_id"`
	}
	CancelDeleteReport struct {
		ReportID string `json:"report_id"`
		OrderID  string `json:"order_id"`
	}
)

func (CreateReport) CommandName() string { return "CreateReport" }
func (DeleteReport) CommandName() string { return "DeleteReport" }
func (CancelCreateReport) CommandName() string { return "CancelCreateReport" }
func (CancelDeleteReport) CommandName() string { return "CancelDeleteReport" }

func (c CreateReport) Target() AggregateKey { return ReportKey(c.ReportID) }
func (c DeleteReport) Target() AggregateKey { return ReportKey(c.ReportID) }
func (c CancelCreateReport) Target() AggregateKey { return ReportKey(c.ReportID) }
func (c CancelDeleteReport) Target() AggregateKey { return ReportKey(c.ReportID) }

func (c CreateOrder) CorrelationID() string { return c.OrderID }
func (c UpdateOrder) CorrelationID() string { return c.OrderID }
func (c DeleteOrder) CorrelationID() string { return c.OrderID }
func (c CompleteOrderCreate) CorrelationID() string { return c.OrderID }
func (c CompleteOrderUpdate) CorrelationID() string { return c.OrderID }
func (c CompleteOrderDelete) CorrelationID() string { return c.OrderID }
func (c CancelCreateOrder) CorrelationID() string { return c.OrderID }
func (c CancelUpdateOrder) CorrelationID() string { return c.OrderID }
func (c CancelDeleteOrder) CorrelationID() string { return c.OrderID }
func (c ForceCancelOrder) CorrelationID() string { return c.OrderID }
func (c CreatePayment) CorrelationID() string { return c.OrderID }
func (c UpdatePayment) CorrelationID() string { return c.OrderID }
func (c DeletePayment) CorrelationID() string { return c.OrderID }
func (c CancelCreatePayment) CorrelationID() string { return c.OrderID }
func (c CancelUpdatePayment) CorrelationID() string { return c.OrderID }
func (c CancelDeletePayment) CorrelationID() string { return c.OrderID }
func (c CreateDelivery) CorrelationID() string { return c.OrderID }
func (c UpdateDelivery) CorrelationID() string { return c.OrderID }
func (c DeleteDelivery) CorrelationID() string { return c.OrderID }
func (c CancelCreateDelivery) CorrelationID() string { return c.OrderID }
func (c CancelUpdateDelivery) CorrelationID() string { return c.OrderID }
func (c CancelDeleteDelivery) CorrelationID() string { return c.OrderID }
func (CreateInventory) CorrelationID() string { return "" }
func (c AdjustInventoryQty) CorrelationID() string { return c.OrderID }
func (c CreateReport) CorrelationID() string { return c.OrderID }
func (c DeleteReport) CorrelationID() string { return c.OrderID }
func (c CancelCreateReport) CorrelationID() string { return c.OrderID }
func (c CancelDeleteReport) CorrelationID() string { return c.OrderID }

func OrderKey(id string) AggregateKey { return AggregateKey{Kind: KindOrder, ID: id} }
func PaymentKey(id string) AggregateKey { return AggregateKey{Kind: KindPayment, ID: id} }
func DeliveryKey(id string) AggregateKey { return AggregateKey{Kind: KindDelivery, ID: id} }
func InventoryKey(id string) AggregateKey { return AggregateKey{Kind: KindInventory, ID: id} }
func ReportKey(id string) AggregateKey { return AggregateKey{Kind: KindReport, ID: id} }
