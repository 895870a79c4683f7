package domain

import "time"

// SagaKind: тип оркестратора.
type SagaKind string

const (
	SagaCreating SagaKind = "creating"
	SagaUpdating SagaKind = "updating"
	SagaDeleting SagaKind = "deleting"
)

// SagaStage: шаг конвейера, событие которого ожидает экземпляр.
type SagaStage string

const (
	StageAwaitPayment    SagaStage = "await_payment"
	StageAwaitDelivery   SagaStage = "await_delivery"
	StageAwaitReport     SagaStage = "await_report"
	StageAwaitCompletion SagaStage = "await_completion"
	StageAwaitCancel     SagaStage = "await_cancel"
)

// SagaInstance: явное значение конечного автомата саги. Хранит только
// идентификаторы и поля, нужные конвейеру; состояние агрегатов сюда не попадает.
type SagaInstance struct {
	Kind           SagaKind    `json:"kind"`
	OrderID        string      `json:"order_id"`
	Stage          SagaStage   `json:"stage"`
	Correlation    Correlation `json:"correlation"`
	IsCompensation bool        `json:"is_compensation"`
	StartedAt      time.Time   `json:"started_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepCreatePayment  SagaStep = "create_payment"
	SagaStepCreateDelivery SagaStep = "create_delivery"
	SagaStepCompleteCreate SagaStep = "complete_create"
	SagaStepUpdatePayment  SagaStep = "update_payment"
	SagaStepCompleteUpdate SagaStep = "complete_update"
	SagaStepLookup         SagaStep = "lookup"
	SagaStepDeletePayment  SagaStep = "delete_payment"
	SagaStepDeleteDelivery SagaStep = "delete_delivery"
	SagaStepDeleteReport   SagaStep = "delete_report"
	SagaStepCompleteDelete SagaStep = "complete_delete"
	SagaStepCompensate     SagaStep = "compensate"
)
