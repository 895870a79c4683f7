package aggregate

import (
	"fmt"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// DecideReport проверяет команду отчёта. CreateReport работает как upsert:
// повторный вызов обновляет проекцию.
func DecideReport(state domain.Report, cmd domain.Command) ([]domain.Event, error) {
	if cmd.Target().ID == "" {
		return nil, domain.Invalid(domain.ErrReportIDRequired)
	}

	if c, ok := cmd.(domain.CreateReport); ok {
		if c.OrderID == "" {
			return nil, domain.Invalid(domain.ErrOrderIDRequired)
		}
		return []domain.Event{domain.CreatedReport{
			ReportID:   c.ReportID,
			OrderID:    c.OrderID,
			PaymentID:  c.PaymentID,
			DeliveryID: c.DeliveryID,
		}}, nil
	}

	if !state.Exists() {
		return nil, fmt.Errorf("report %s: %w", cmd.Target().ID, domain.ErrNotFound)
	}

	switch c := cmd.(type) {
	case domain.DeleteReport:
		if state.Deleted {
			return nil, fmt.Errorf("report %s already deleted: %w", c.ReportID, domain.ErrNotFound)
		}
		return []domain.Event{domain.DeletedReport{ReportID: c.ReportID, OrderID: state.OrderID}}, nil
	case domain.CancelCreateReport:
		return []domain.Event{domain.CancelledCreateReport{ReportID: c.ReportID, OrderID: state.OrderID}}, nil
	case domain.CancelDeleteReport:
		return []domain.Event{domain.CancelledDeleteReport{ReportID: c.ReportID, OrderID: state.OrderID}}, nil
	default:
		return nil, domain.Invalid(fmt.Errorf("unsupported report command %s", cmd.CommandName()))
	}
}

// ApplyReport применяет событие к отчёту. Поля проекции (статусы, суммы)
// заполняет сервис отчётов после применения.
func ApplyReport(state domain.Report, ev domain.Event) domain.Report {
	switch e := ev.(type) {
	case domain.CreatedReport:
		state.ID = e.ReportID
		state.OrderID = e.OrderID
		if e.PaymentID != "" {
			state.PaymentID = e.PaymentID
		}
		if e.DeliveryID != "" {
			state.DeliveryID = e.DeliveryID
		}
		state.Deleted = false
	case domain.DeletedReport:
		state.Deleted = true
	case domain.CancelledCreateReport:
		return domain.Report{Version: state.Version}
	case domain.CancelledDeleteReport:
		state.Deleted = false
	}
	return state
}

// FoldReport восстанавливает отчёт из истории событий.
func FoldReport(initial domain.Report, history []domain.Event) domain.Report {
	return Fold(initial, history, ApplyReport)
}
