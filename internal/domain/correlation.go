package domain

// Correlation связывает заказ с идентификаторами агрегатов других сервисов.
// Заполняется один раз при старте саги; поздние идентификаторы только дописываются.
type Correlation struct {
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	ReportID   string `json:"report_id,omitempty"`
}

// Merge дописывает отсутствующие идентификаторы, не перетирая уже известные.
func (c Correlation) Merge(other Correlation) Correlation {
	if c.OrderID == "" {
		c.OrderID = other.OrderID
	}
	if c.PaymentID == "" {
		c.PaymentID = other.PaymentID
	}
	if c.DeliveryID == "" {
		c.DeliveryID = other.DeliveryID
	}
	if c.ReportID == "" {
		c.ReportID = other.ReportID
	}
	return c
}
