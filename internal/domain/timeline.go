package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// Типы записей таймлайна, которые не являются доменными событиями.
const (
	TimelineInventoryClamped = "InventoryClamped"
	TimelineSagaStarted      = "SagaStarted"
	TimelineSagaFinished     = "SagaFinished"
	TimelineSagaExpired      = "SagaExpired"
)
