package domain

import "errors"

var (
	// ErrInvalidCommand: команда не прошла валидацию на границе агрегата.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrAlreadyExists: агрегат с таким идентификатором уже существует.
	ErrAlreadyExists = errors.New("aggregate already exists")
	// ErrInvalidTransition: переход статуса не разрешён жизненным циклом.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound: агрегат или проекция не найдены.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrReservationFailed: пакетное списание остатков не удалось и было откатано.
	ErrReservationFailed = errors.New("inventory reservation failed")
	// ErrNoHandler: для команды не зарегистрирован обработчик.
	ErrNoHandler = errors.New("no handler registered for command")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки валидации полей.
	ErrOrderIDRequired    = errors.New("order_id is required")
	ErrUserIDRequired     = errors.New("user_id is required")
	ErrPaymentIDRequired  = errors.New("payment_id is required")
	ErrDeliveryIDRequired = errors.New("delivery_id is required")
	ErrReportIDRequired   = errors.New("report_id is required")
	ErrProductIDRequired  = errors.New("product_id is required")
	ErrLinesRequired      = errors.New("order must contain at least one line")
	ErrLineQtyInvalid     = errors.New("line qty must be greater than zero")
	ErrAmountNegative     = errors.New("amount must be non-negative")
	ErrAmountMismatch     = errors.New("total amount does not match lines sum")
	ErrPaymentMismatch    = errors.New("payment lines do not match total amount")
	ErrDirectionInvalid   = errors.New("adjust direction must be INCREASE or DECREASE")
	ErrStatusInvalid      = errors.New("status is not supported")
)

// IsRejection сообщает, что ошибку нужно вернуть вызывающему синхронно,
// а не превращать в Failed-событие.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidCommand) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// Invalid оборачивает ошибки валидации в ErrInvalidCommand.
func Invalid(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidCommand}, errs...)...)
}
