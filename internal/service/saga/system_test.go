package saga_test

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/query"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/compensation"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/delivery"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/order"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/payment"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/report"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/reservation"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/saga"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/memory"
)

// recordingSender запоминает команды, отправленные сагами и координатором.
// Команды из reject отклоняются, не доходя до агрегата.
type recordingSender struct {
	next   bus.Sender
	mu     sync.Mutex
	sent   []domain.Command
	reject map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, cmd domain.Command) bus.Result {
	s.mu.Lock()
	s.sent = append(s.sent, cmd)
	rejected := s.reject[cmd.CommandName()]
	s.mu.Unlock()
	if rejected {
		return bus.Result{Kind: bus.FailureRejected, Err: domain.ErrInvalidTransition}
	}
	return s.next.Send(ctx, cmd)
}

func (s *recordingSender) rejectCommand(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject == nil {
		s.reject = make(map[string]bool)
	}
	s.reject[name] = true
}

func (s *recordingSender) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sent))
	for _, cmd := range s.sent {
		names = append(names, cmd.CommandName())
	}
	return names
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}

func (s *recordingSender) count(name string) int {
	n := 0
	for _, got := range s.names() {
		if got == name {
			n++
		}
	}
	return n
}

// system: все сервисы и саги поверх одной шины и in-memory хранилищ.
type system struct {
	bus      *bus.Bus
	sender   *recordingSender
	repos    query.Repositories
	sagas    domain.SagaRepository
	timeline domain.TimelineRepository
}

func newSystem(t *testing.T) *system {
	t.Helper()
	logger := log.New().WithField("test", t.Name())
	b := bus.New(bus.WithTimeout(2*time.Second), bus.WithLogger(logger))
	t.Cleanup(b.Close)

	s := &system{
		bus:      b,
		sender:   &recordingSender{next: b},
		sagas:    memory.NewSagaRepository(),
		timeline: memory.NewTimelineRepository(),
	}
	s.repos = query.Repositories{
		Orders:     memory.NewOrderRepository(),
		Payments:   memory.NewPaymentRepository(),
		Deliveries: memory.NewDeliveryRepository(),
		Reports:    memory.NewReportRepository(),
		Inventory:  memory.NewInventoryRepository(),
		Timeline:   s.timeline,
	}
	reader := query.NewService(s.repos, nil, logger)

	orders := order.NewService(s.repos.Orders, logger)
	orders.Register(b)
	orders.Subscribe(b, b)
	payment.NewService(s.repos.Payments, logger).Register(b)
	inventory.NewService(s.repos.Inventory, s.timeline, nil, logger).Register(b)
	delivery.NewService(s.repos.Deliveries, reader, reservation.NewReserver(b, nil, logger), logger).Register(b)
	report.NewService(s.repos.Reports, report.Sources{
		Orders:     s.repos.Orders,
		Payments:   s.repos.Payments,
		Deliveries: s.repos.Deliveries,
	}, logger).Register(b)

	deps := saga.Deps{
		Sender:       s.sender,
		Compensation: compensation.NewCoordinator(s.sender, nil, logger),
		Lookup:       reader,
		Logger:       logger,
	}
	manager := saga.NewManager(s.sagas, s.timeline, nil, logger,
		saga.NewCreating(deps), saga.NewUpdating(deps), saga.NewDeleting(deps))
	manager.Subscribe(b, 4)
	return s
}

func (s *system) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.bus.WaitIdle(ctx))
}

func (s *system) activeSagas(t *testing.T) int {
	t.Helper()
	list, err := s.sagas.List()
	require.NoError(t, err)
	return len(list)
}

func (s *system) order(t *testing.T, id string) domain.Order {
	t.Helper()
	o, err := s.repos.Orders.Get(id)
	require.NoError(t, err)
	return o
}

func createOrderCmd(id string) domain.CreateOrder {
	return domain.CreateOrder{
		OrderID:      id,
		UserID:       "user-1",
		OrderedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		TotalAmount:  20000,
		Lines:        []domain.OrderLine{{ProductID: "P1", Qty: 2, LineAmount: 20000}},
		PaymentID:    "pay-" + id,
		PaymentLines: []domain.PaymentLine{{Kind: "CARD", Amount: 20000}},
	}
}

// createCompleted проводит заказ через сагу создания.
func (s *system) createCompleted(t *testing.T, id string) {
	t.Helper()
	res := s.bus.Send(context.Background(), createOrderCmd(id))
	require.True(t, res.OK(), "create order: %v", res.Err)
	s.waitIdle(t)
	require.Equal(t, domain.OrderStatusCompleted, s.order(t, id).Status)
	s.sender.reset()
}
