package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/idempotency"
)

// idempotent сохраняет ответ lifecycle-запроса по ключу и отдаёт его на повтор.
// Ключ действует в пределах команды и id заказа или товара из пути.
// Запросы без заголовка проходят как есть.
func (h *Handler) idempotent(command string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return h.idempotentCommand(command, next)
	}
}

func requestScope(command string, r *http.Request) domain.IdempotencyScope {
	resource := chi.URLParam(r, "orderID")
	if resource == "" {
		resource = chi.URLParam(r, "productID")
	}
	return domain.IdempotencyScope{Command: command, ResourceID: resource}
}

func (h *Handler) idempotentCommand(command string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if h.guard == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		scope := requestScope(command, r)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		record, replay, err := h.guard.Begin(scope, key, domain.HashRequest(r.Method, r.URL.Path, body))
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		case err != nil:
			h.logger.WithError(err).WithFields(log.Fields{
				"idempotency_key": key,
				"scope":           scope.String(),
			}).Error("idempotency lookup failed")
			writeError(w, http.StatusInternalServerError, "idempotency storage unavailable")
			return
		case replay:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(ReplayedHeader, strconv.FormatBool(true))
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
			return
		}

		var captured bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&captured)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if err := h.guard.Finish(scope, key, status, captured.Bytes()); err != nil {
			h.logger.WithError(err).WithFields(log.Fields{
				"idempotency_key": key,
				"scope":           scope.String(),
				"status":          status,
			}).Warn("failed to store idempotent response")
		}
	})
}
