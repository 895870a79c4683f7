// Package httpapi: HTTP-вход сервиса: lifecycle-команды и запросы чтения.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/query"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/idempotency"
)

// IdempotencyKeyHeader: заголовок с ключом идемпотентности lifecycle-запроса.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader выставляется на ответах, восстановленных по ключу идемпотентности.
const ReplayedHeader = "Idempotent-Replayed"

// Reader: запросы чтения, которые отдаёт API.
type Reader interface {
	OrderDetail(ctx context.Context, orderID string) (query.OrderDetail, error)
	Payment(ctx context.Context, orderID string) (domain.Payment, error)
	Delivery(ctx context.Context, orderID string) (domain.Delivery, error)
	Report(ctx context.Context, orderID string) (domain.Report, error)
	Inventory(ctx context.Context, productID string) (domain.Inventory, error)
	Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error)
}

// Handler обслуживает HTTP API поверх шины команд и фасада чтения.
type Handler struct {
	sender bus.Sender
	reader Reader
	guard  *idempotency.Guard
	logger *log.Entry
	now    func() time.Time
	newID  func() string
}

// NewHandler создаёт обработчик API. guard может быть nil: тогда ключ идемпотентности игнорируется.
func NewHandler(sender bus.Sender, reader Reader, guard *idempotency.Guard, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		sender: sender,
		reader: reader,
		guard:  guard,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  newUUID,
	}
}

// Router собирает chi-маршруты.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.With(h.idempotent("CreateOrder")).Post("/", h.createOrder)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.With(h.idempotent("UpdateOrder")).Put("/", h.updateOrder)
			r.With(h.idempotent("DeleteOrder")).Delete("/", h.deleteOrder)
			r.Get("/payment", h.getPayment)
			r.Get("/delivery", h.getDelivery)
			r.With(h.idempotent("UpdateDelivery")).Put("/delivery", h.updateDelivery)
			r.Get("/report", h.getReport)
			r.Get("/timeline", h.getTimeline)
		})
	})
	r.Route("/inventory", func(r chi.Router) {
		r.With(h.idempotent("CreateInventory")).Post("/", h.createInventory)
		r.Get("/{productID}", h.getInventory)
		r.With(h.idempotent("AdjustInventory")).Post("/{productID}/adjust", h.adjustInventory)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("http request failed")
			return
		}
		entry.Debug("http request served")
	})
}
