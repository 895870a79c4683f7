package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

type createOrderRequest struct {
	OrderID      string               `json:"order_id"`
	UserID       string               `json:"user_id"`
	OrderedAt    *time.Time           `json:"ordered_at"`
	TotalAmount  int64                `json:"total_amount"`
	Lines        []domain.OrderLine   `json:"lines"`
	PaymentID    string               `json:"payment_id"`
	PaymentLines []domain.PaymentLine `json:"payment_lines"`
}

type updateOrderRequest struct {
	OrderedAt    *time.Time           `json:"ordered_at"`
	TotalAmount  int64                `json:"total_amount"`
	Lines        []domain.OrderLine   `json:"lines"`
	PaymentLines []domain.PaymentLine `json:"payment_lines"`
}

type updateDeliveryRequest struct {
	Status domain.DeliveryStatus `json:"status"`
}

type adjustInventoryRequest struct {
	Direction domain.AdjustDirection `json:"direction"`
	Amount    int64                  `json:"amount"`
	OrderID   string                 `json:"order_id,omitempty"`
}

// acceptedResponse подтверждает только локальное принятие команды первым агрегатом:
// итог распределённого конвейера виден по состоянию заказа и отчёта.
type acceptedResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Event   string `json:"event,omitempty"`
	OrderID string `json:"order_id,omitempty"`
	ID      string `json:"id,omitempty"`
}

type timelineEntry struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		req.OrderID = h.newID()
	}
	if req.PaymentID == "" {
		req.PaymentID = h.newID()
	}
	orderedAt := h.now()
	if req.OrderedAt != nil {
		orderedAt = req.OrderedAt.UTC()
	}

	h.send(w, r, domain.CreateOrder{
		OrderID:      req.OrderID,
		UserID:       req.UserID,
		OrderedAt:    orderedAt,
		TotalAmount:  req.TotalAmount,
		Lines:        req.Lines,
		PaymentID:    req.PaymentID,
		PaymentLines: req.PaymentLines,
	}, req.OrderID)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	orderedAt := h.now()
	if req.OrderedAt != nil {
		orderedAt = req.OrderedAt.UTC()
	}

	h.send(w, r, domain.UpdateOrder{
		OrderID:      orderID,
		OrderedAt:    orderedAt,
		TotalAmount:  req.TotalAmount,
		Lines:        req.Lines,
		PaymentLines: req.PaymentLines,
	}, orderID)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	h.send(w, r, domain.DeleteOrder{OrderID: orderID}, orderID)
}

// updateDelivery меняет статус доставки заказа; переход в DELIVERING резервирует остатки.
func (h *Handler) updateDelivery(w http.ResponseWriter, r *http.Request) {
	var req updateDeliveryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	delivery, err := h.reader.Delivery(r.Context(), orderID)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.send(w, r, domain.UpdateDelivery{
		DeliveryID: delivery.ID,
		OrderID:    orderID,
		Status:     req.Status,
	}, delivery.ID)
}

func (h *Handler) createInventory(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateInventory
	if !decodeBody(w, r, &req) {
		return
	}
	h.send(w, r, req, req.ProductID)
}

func (h *Handler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	var req adjustInventoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	productID := chi.URLParam(r, "productID")
	h.send(w, r, domain.AdjustInventoryQty{
		ProductID: productID,
		OrderID:   req.OrderID,
		Direction: req.Direction,
		Amount:    req.Amount,
	}, productID)
}

// send отправляет команду и переводит исход в HTTP-статус: 202 при локальном
// принятии, 409/422 при отказе, 404 если агрегат не найден, 504 по таймауту.
func (h *Handler) send(w http.ResponseWriter, r *http.Request, cmd domain.Command, id string) {
	res := h.sender.Send(r.Context(), cmd)
	logger := h.logger.WithFields(log.Fields{
		"command":  cmd.CommandName(),
		"order_id": cmd.CorrelationID(),
		"kind":     res.Kind.String(),
	})

	switch res.Kind {
	case bus.FailureTimeout:
		logger.WithError(res.Err).Warn("command timed out")
		writeError(w, http.StatusGatewayTimeout, "command outcome is unknown: "+errorText(res.Err))
		return
	case bus.FailureRejected:
		logger.WithError(res.Err).Info("command rejected")
		writeError(w, rejectionStatus(res.Err), errorText(res.Err))
		return
	}

	if failed, ok := res.Failed(); ok {
		logger.WithField("reason", failed.Reason).Info("command failed on the aggregate")
		writeError(w, http.StatusNotFound, failed.Reason)
		return
	}

	resp := acceptedResponse{
		Status:  "accepted",
		Command: cmd.CommandName(),
		OrderID: cmd.CorrelationID(),
		ID:      id,
	}
	if res.Event != nil {
		resp.Event = res.Event.EventName()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.reader.OrderDetail(r.Context(), chi.URLParam(r, "orderID"))
	h.respond(w, detail, err)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.reader.Payment(r.Context(), chi.URLParam(r, "orderID"))
	h.respond(w, payment, err)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.reader.Delivery(r.Context(), chi.URLParam(r, "orderID"))
	h.respond(w, delivery, err)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reader.Report(r.Context(), chi.URLParam(r, "orderID"))
	h.respond(w, report, err)
}

func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	item, err := h.reader.Inventory(r.Context(), chi.URLParam(r, "productID"))
	h.respond(w, item, err)
}

func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.reader.Timeline(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	entries := make([]timelineEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, timelineEntry{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) respond(w http.ResponseWriter, body any, err error) {
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.WithError(err).Error("query failed")
	writeError(w, http.StatusInternalServerError, "query failed")
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoHandler):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func newUUID() string { return uuid.NewString() }
