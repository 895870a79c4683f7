// Package bus: внутрипроцессная шина команд и событий.
//
// Команды адресуются одному агрегату и выполняются по одной на ключ агрегата.
// Send ждёт исход не дольше фиксированного таймаута. События доставляются
// подписчикам асинхронно, не менее одного раза, с порядком внутри orderId.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

// DefaultTimeout: фиксированное время ожидания исхода команды.
const DefaultTimeout = 30 * time.Second

// Bus реализует Sender и Dispatcher поверх зарегистрированных обработчиков.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	subs     []*subscription

	locks   *keyedMutex
	timeout time.Duration
	logger  *log.Entry
	metrics *metrics.BusMetrics
	tracer  trace.Tracer

	pending atomic.Int64
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// Option настраивает шину.
type Option func(*Bus)

// WithTimeout задаёт время ожидания исхода команды.
func WithTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics подключает метрики шины.
func WithMetrics(m *metrics.BusMetrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithTracer задаёт трейсер вместо глобального.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) {
		if t != nil {
			b.tracer = t
		}
	}
}

// New создаёт шину.
func New(opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[string]Handler),
		locks:    newKeyedMutex(),
		timeout:  DefaultTimeout,
		logger:   log.WithField("component", "bus"),
		tracer:   otel.Tracer("github.com/vladislavdragonenkov/ordersaga/internal/bus"),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Timeout возвращает фиксированное время ожидания исхода.
func (b *Bus) Timeout() time.Duration { return b.timeout }

// Register привязывает обработчик к имени команды.
func (b *Bus) Register(commandName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[commandName] = h
}

// Subscribe запускает подписчика с partitions независимыми очередями.
func (b *Bus) Subscribe(name string, partitions int, h EventHandler) {
	if partitions <= 0 {
		partitions = 1
	}
	logger := b.logger.WithField("subscriber", name)
	sub := &subscription{name: name, partitions: make([]*mailbox, partitions)}
	for i := range sub.partitions {
		mb := newMailbox(h, func() { b.pending.Add(-1) }, logger)
		sub.partitions[i] = mb
		b.workers.Add(1)
		go func() {
			defer b.workers.Done()
			mb.run(b.ctx)
		}()
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// Send отправляет команду и ждёт исход не дольше таймаута шины.
func (b *Bus) Send(ctx context.Context, cmd domain.Command) Result {
	name := cmd.CommandName()
	key := cmd.Target()
	start := time.Now()

	ctx, span := b.tracer.Start(ctx, "bus.send "+name, trace.WithAttributes(
		attribute.String("command", name),
		attribute.String("aggregate.key", key.String()),
	))
	defer span.End()

	res := b.send(ctx, cmd)

	b.metrics.RecordSend(name, res.Kind.String(), time.Since(start))
	if !res.OK() {
		span.SetStatus(codes.Error, res.Kind.String())
		if res.Err != nil {
			span.RecordError(res.Err)
		}
	}
	return res
}

func (b *Bus) send(ctx context.Context, cmd domain.Command) Result {
	b.mu.RLock()
	h, ok := b.handlers[cmd.CommandName()]
	b.mu.RUnlock()
	if !ok {
		return Result{Kind: FailureRejected, Err: fmt.Errorf("%s: %w", cmd.CommandName(), domain.ErrNoHandler)}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan Result, 1)
	b.pending.Add(1)
	go func() {
		defer b.pending.Add(-1)
		done <- b.execute(ctx, h, cmd)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{Kind: FailureTimeout, Err: fmt.Errorf("%s to %s: %w", cmd.CommandName(), cmd.Target(), ctx.Err())}
	}
}

// execute выполняет обработчик под замком агрегата. Начатая запись доводится
// до конца даже после таймаута вызывающего, поэтому обработчик получает
// контекст без отмены.
func (b *Bus) execute(ctx context.Context, h Handler, cmd domain.Command) Result {
	release, err := b.locks.Lock(ctx, cmd.Target().String())
	if err != nil {
		return Result{Kind: FailureTimeout, Err: fmt.Errorf("wait for %s: %w", cmd.Target(), err)}
	}

	out, err := h(context.WithoutCancel(ctx), cmd)
	if err != nil {
		release()
		return Result{Kind: FailureRejected, Err: err}
	}
	b.Publish(out.Events...)
	release()

	for _, next := range out.FollowUps {
		b.Dispatch(ctx, next)
	}

	res := Result{Events: out.Events}
	if len(out.Events) > 0 {
		res.Event = out.Events[0]
	}
	return res
}

// Dispatch отправляет команду без ожидания; неудачу только логирует.
func (b *Bus) Dispatch(ctx context.Context, cmd domain.Command) {
	ctx = context.WithoutCancel(ctx)
	b.pending.Add(1)
	go func() {
		defer b.pending.Add(-1)
		res := b.Send(ctx, cmd)
		if !res.OK() {
			b.logger.WithFields(log.Fields{
				"command": cmd.CommandName(),
				"target":  cmd.Target().String(),
				"kind":    res.Kind.String(),
			}).WithError(res.Err).Warn("dispatched command failed")
		}
	}()
}

// Publish раздаёт события всем подписчикам. Не блокируется.
func (b *Bus) Publish(events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, ev := range events {
		b.metrics.RecordEvent(ev.EventName())
		for _, sub := range subs {
			b.pending.Add(1)
			sub.route(ev).push(ev)
		}
	}
}

// WaitIdle ждёт, пока не останется команд и событий в обработке.
func (b *Bus) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if b.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("bus not idle, %d pending: %w", b.pending.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close останавливает подписчиков. Недоставленные события теряются.
func (b *Bus) Close() {
	b.cancel()
	b.workers.Wait()
}

var (
	_ Sender     = (*Bus)(nil)
	_ Dispatcher = (*Bus)(nil)
	_ Registry   = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)
