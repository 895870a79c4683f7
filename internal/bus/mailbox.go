package bus

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// subscription раскладывает события по партициям по хэшу orderId:
// события одного заказа обрабатываются строго по порядку, разных параллельно.
type subscription struct {
	name       string
	partitions []*mailbox
}

func (s *subscription) route(ev domain.Event) *mailbox {
	idx := xxhash.Sum64String(ev.CorrelationID()) % uint64(len(s.partitions))
	return s.partitions[idx]
}

// mailbox: неограниченная очередь с одним обработчиком. Публикация никогда
// не блокируется, поэтому обработчик может сам отправлять команды в шину.
type mailbox struct {
	mu      sync.Mutex
	queue   []domain.Event
	notify  chan struct{}
	handler EventHandler
	done    func()
	logger  *log.Entry
}

func newMailbox(handler EventHandler, done func(), logger *log.Entry) *mailbox {
	return &mailbox{
		notify:  make(chan struct{}, 1),
		handler: handler,
		done:    done,
		logger:  logger,
	}
}

func (m *mailbox) push(ev domain.Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (domain.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	ev := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return ev, true
}

func (m *mailbox) run(ctx context.Context) {
	for {
		for {
			ev, ok := m.pop()
			if !ok {
				break
			}
			m.deliver(ctx, ev)
		}
		select {
		case <-ctx.Done():
			return
		case <-m.notify:
		}
	}
}

func (m *mailbox) deliver(ctx context.Context, ev domain.Event) {
	defer m.done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithFields(log.Fields{
				"event":    ev.EventName(),
				"order_id": ev.CorrelationID(),
				"panic":    r,
			}).Error("event handler panicked")
		}
	}()
	m.handler(ctx, ev)
}
