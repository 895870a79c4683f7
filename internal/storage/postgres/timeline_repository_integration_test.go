package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := integrationStore(t)
	repo := NewTimelineRepository(store)

	base := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)

	if err := repo.Append(domain.TimelineEvent{
		OrderID:  "timeline-order",
		Type:     "CreatedPayment",
		Occurred: base.Add(10 * time.Second),
	}); err != nil {
		t.Fatalf("append later event: %v", err)
	}
	if err := repo.Append(domain.TimelineEvent{
		OrderID:  "timeline-order",
		Type:     "CreatedOrder",
		Occurred: base,
	}); err != nil {
		t.Fatalf("append earlier event: %v", err)
	}
	if err := repo.Append(domain.TimelineEvent{
		OrderID: "timeline-order",
		Type:    "FailedDelivery",
		Reason:  "address is not serviceable",
	}); err != nil {
		t.Fatalf("append event with zero occurred: %v", err)
	}

	events, err := repo.List("timeline-order")
	if err != nil {
		t.Fatalf("list timeline events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 timeline events, got %d", len(events))
	}
	got := []string{events[0].Type, events[1].Type, events[2].Type}
	want := []string{"CreatedOrder", "CreatedPayment", "FailedDelivery"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got %v, want %v", got, want)
		}
	}
	if events[2].Reason != "address is not serviceable" {
		t.Fatalf("reason was not stored: %+v", events[2])
	}
}

func TestTimelineRepository_PostgresUnknownOrder(t *testing.T) {
	store := integrationStore(t)
	repo := NewTimelineRepository(store)

	events, err := repo.List("missing-order")
	if err != nil {
		t.Fatalf("list for missing order should not fail: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for missing order, got %d", len(events))
	}

	if err := repo.Append(domain.TimelineEvent{Type: "CreatedOrder"}); !errors.Is(err, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", err)
	}
}
