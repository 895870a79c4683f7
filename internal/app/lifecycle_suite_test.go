package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// OrderLifecycleTestSuite проверяет полный жизненный цикл заказа через HTTP API.
type OrderLifecycleTestSuite struct {
	suite.Suite
	sys *system
	srv *httptest.Server
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	s.sys, s.srv = newTestSystem(s.T())
}

func (s *OrderLifecycleTestSuite) do(method, path string, body any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	waitIdle(s.T(), s.sys)
	return resp.StatusCode
}

func (s *OrderLifecycleTestSuite) order(id string) domain.Order {
	stored, err := s.sys.deps.orders.Get(id)
	s.Require().NoError(err)
	return stored
}

func (s *OrderLifecycleTestSuite) TestCreateUpdateDelete() {
	s.Require().Equal(http.StatusAccepted, s.do(http.MethodPost, "/orders", orderRequest("life-1")))
	s.Equal(domain.OrderStatusCompleted, s.order("life-1").Status)

	report, err := s.sys.reader.Report(context.Background(), "life-1")
	s.Require().NoError(err)
	s.Equal("pay-life-1", report.PaymentID)

	update := map[string]any{
		"total_amount":  30000,
		"lines":         []domain.OrderLine{{ProductID: "P1", Qty: 3, LineAmount: 30000}},
		"payment_lines": []domain.PaymentLine{{Kind: "CARD", Amount: 30000}},
	}
	s.Require().Equal(http.StatusAccepted, s.do(http.MethodPut, "/orders/life-1", update))

	updated := s.order("life-1")
	s.Equal(domain.OrderStatusCompleted, updated.Status)
	s.Equal(int64(30000), updated.TotalAmount)

	pay, err := s.sys.deps.payments.Get("pay-life-1")
	s.Require().NoError(err)
	s.Equal(int64(30000), pay.TotalAmount)

	s.Require().Equal(http.StatusAccepted, s.do(http.MethodDelete, "/orders/life-1", nil))
	s.Equal(domain.OrderStatusDeleted, s.order("life-1").Status)

	pay, err = s.sys.deps.payments.Get("pay-life-1")
	s.Require().NoError(err)
	s.True(pay.Deleted)

	sagas, err := s.sys.deps.sagas.List()
	s.Require().NoError(err)
	s.Empty(sagas)
}

func (s *OrderLifecycleTestSuite) TestUpdateUnknownOrderIsNotAccepted() {
	update := map[string]any{
		"total_amount":  100,
		"lines":         []domain.OrderLine{{ProductID: "P1", Qty: 1, LineAmount: 100}},
		"payment_lines": []domain.PaymentLine{{Kind: "CARD", Amount: 100}},
	}
	s.NotEqual(http.StatusAccepted, s.do(http.MethodPut, "/orders/missing", update))
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
