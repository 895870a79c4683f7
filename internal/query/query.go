// Package query отвечает на точечные запросы чтения по orderId.
//
// Проекции копируют поля снимков агрегатов; детали заказа кэшируются
// (read-through) и сбрасываются подписчиком на события заказа.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/cache"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// DefaultCacheTTL: время жизни закэшированных деталей заказа.
const DefaultCacheTTL = 5 * time.Minute

// OrderDetail: детали заказа для ответа API.
type OrderDetail struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	OrderedAt    time.Time            `json:"ordered_at"`
	Status       domain.OrderStatus   `json:"status"`
	TotalAmount  int64                `json:"total_amount"`
	Lines        []domain.OrderLine   `json:"lines"`
	PaymentID    string               `json:"payment_id"`
	PaymentLines []domain.PaymentLine `json:"payment_lines"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Repositories: источники проекций. Timeline и Inventory могут быть nil.
type Repositories struct {
	Orders     domain.OrderRepository
	Payments   domain.PaymentRepository
	Deliveries domain.DeliveryRepository
	Reports    domain.ReportRepository
	Inventory  domain.InventoryRepository
	Timeline   domain.TimelineRepository
}

// Service: фасад чтения.
type Service struct {
	repos    Repositories
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *log.Entry
}

// NewService создаёт фасад чтения. cache может быть nil.
func NewService(repos Repositories, c cache.Cache, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "query")
	}
	return &Service{repos: repos, cache: c, cacheTTL: DefaultCacheTTL, logger: logger}
}

// OrderDetail возвращает детали заказа, сначала из кэша.
func (s *Service) OrderDetail(ctx context.Context, orderID string) (OrderDetail, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, s.cacheKey(orderID)); err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("order cache read failed")
		} else if raw != "" {
			var detail OrderDetail
			if err := json.Unmarshal([]byte(raw), &detail); err == nil {
				return detail, nil
			}
		}
	}

	order, err := s.repos.Orders.Get(orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	detail := OrderDetail{
		ID:           order.ID,
		UserID:       order.UserID,
		OrderedAt:    order.OrderedAt,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		Lines:        domain.CloneLines(order.Lines),
		PaymentID:    order.PaymentID,
		PaymentLines: domain.ClonePaymentLines(order.PaymentLines),
		UpdatedAt:    order.UpdatedAt,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(detail); err == nil {
			if err := s.cache.Set(ctx, s.cacheKey(orderID), raw, s.cacheTTL); err != nil {
				s.logger.WithError(err).WithField("order_id", orderID).Warn("order cache write failed")
			}
		}
	}
	return detail, nil
}

// OrderLines возвращает позиции заказа; используется резервированием остатков.
func (s *Service) OrderLines(orderID string) ([]domain.OrderLine, error) {
	order, err := s.repos.Orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	return domain.CloneLines(order.Lines), nil
}

// Correlation собирает идентификаторы сервисов по заказу. Основной источник:
// отчёт; недостающие id дополняются из снимков оплаты и доставки.
func (s *Service) Correlation(_ context.Context, orderID string) (domain.Correlation, error) {
	corr := domain.Correlation{OrderID: orderID}
	found := false

	if r, err := s.repos.Reports.FindByOrder(orderID); err == nil {
		corr = corr.Merge(r.Correlation())
		found = true
	} else if !errors.Is(err, domain.ErrNotFound) {
		return corr, err
	}

	if corr.PaymentID == "" {
		if p, err := s.repos.Payments.FindByOrder(orderID); err == nil {
			corr.PaymentID = p.ID
			found = true
		}
	}
	if corr.DeliveryID == "" {
		if d, err := s.repos.Deliveries.FindByOrder(orderID); err == nil {
			corr.DeliveryID = d.ID
			found = true
		}
	}
	if !found {
		return corr, fmt.Errorf("correlation for order %s: %w", orderID, domain.ErrNotFound)
	}
	return corr, nil
}

func (s *Service) Payment(_ context.Context, orderID string) (domain.Payment, error) {
	return s.repos.Payments.FindByOrder(orderID)
}

func (s *Service) Delivery(_ context.Context, orderID string) (domain.Delivery, error) {
	return s.repos.Deliveries.FindByOrder(orderID)
}

func (s *Service) Report(_ context.Context, orderID string) (domain.Report, error) {
	return s.repos.Reports.FindByOrder(orderID)
}

func (s *Service) Inventory(_ context.Context, productID string) (domain.Inventory, error) {
	if s.repos.Inventory == nil {
		return domain.Inventory{}, fmt.Errorf("inventory %s: %w", productID, domain.ErrNotFound)
	}
	return s.repos.Inventory.Get(productID)
}

// Timeline возвращает журнал событий заказа в хронологическом порядке.
func (s *Service) Timeline(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if s.repos.Timeline == nil {
		return nil, nil
	}
	return s.repos.Timeline.List(orderID)
}

// Subscribe сбрасывает кэш деталей заказа при каждом событии заказа.
func (s *Service) Subscribe(sub bus.Subscriber) {
	if s.cache == nil {
		return
	}
	sub.Subscribe("query-cache", 1, func(ctx context.Context, ev domain.Event) {
		if !isOrderEvent(ev) {
			return
		}
		if err := s.cache.Delete(ctx, s.cacheKey(ev.CorrelationID())); err != nil {
			s.logger.WithError(err).WithField("order_id", ev.CorrelationID()).Warn("order cache invalidation failed")
		}
	})
}

func (s *Service) cacheKey(orderID string) string {
	return s.cache.GenerateKey("order", orderID)
}

func isOrderEvent(ev domain.Event) bool {
	switch e := ev.(type) {
	case domain.CreatedOrder, domain.UpdatedOrder, domain.DeletedOrder,
		domain.CompletedCreateOrder, domain.CompletedUpdateOrder, domain.CompletedDeleteOrder,
		domain.CancelledCreateOrder, domain.CancelledUpdateOrder, domain.CancelledDeleteOrder,
		domain.ForcedCancelOrder:
		return true
	case domain.Failed:
		return e.Aggregate == domain.KindOrder
	}
	return false
}
