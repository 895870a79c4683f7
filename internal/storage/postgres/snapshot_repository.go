package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// snapshotRepository хранит снимки всех агрегатов в одной таблице,
// различая их по kind. Снимок сериализуется в JSONB целиком.
type snapshotRepository[T domain.Versioned[T]] struct {
	db   *sql.DB
	kind domain.AggregateKind
}

// NewSnapshotRepository создаёт PostgreSQL-реализацию SnapshotRepository для заданного типа агрегата.
func NewSnapshotRepository[T domain.Versioned[T]](store *Store, kind domain.AggregateKind) domain.SnapshotRepository[T] {
	return &snapshotRepository[T]{db: store.DB(), kind: kind}
}

func NewOrderRepository(store *Store) domain.OrderRepository {
	return NewSnapshotRepository[domain.Order](store, domain.KindOrder)
}

func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return NewSnapshotRepository[domain.Payment](store, domain.KindPayment)
}

func NewDeliveryRepository(store *Store) domain.DeliveryRepository {
	return NewSnapshotRepository[domain.Delivery](store, domain.KindDelivery)
}

func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return NewSnapshotRepository[domain.Inventory](store, domain.KindInventory)
}

func NewReportRepository(store *Store) domain.ReportRepository {
	return NewSnapshotRepository[domain.Report](store, domain.KindReport)
}

func (r *snapshotRepository[T]) Get(id string) (T, error) {
	ctx, cancel := opContext()
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT data FROM aggregate_snapshots
		WHERE kind = $1 AND id = $2
	`, string(r.kind), id)
	return r.scan(row, fmt.Sprintf("%s %s", r.kind, id))
}

func (r *snapshotRepository[T]) FindByOrder(orderID string) (T, error) {
	ctx, cancel := opContext()
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT data FROM aggregate_snapshots
		WHERE kind = $1 AND order_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`, string(r.kind), orderID)
	return r.scan(row, fmt.Sprintf("%s for order %s", r.kind, orderID))
}

// Save вставляет новый снимок или обновляет существующий, если версия в базе
// совпадает с версией сохраняемого значения. Сохранённая версия увеличивается на единицу.
func (r *snapshotRepository[T]) Save(entity T) error {
	ctx, cancel := opContext()
	defer cancel()

	id := entity.EntityID()
	expected := entity.EntityVersion()
	next := entity.WithVersion(expected + 1)

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", r.kind, id, err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO aggregate_snapshots (kind, id, order_id, version, data, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (kind, id) DO UPDATE
		SET order_id = EXCLUDED.order_id,
		    version = EXCLUDED.version,
		    data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
		WHERE aggregate_snapshots.version = $7
	`, string(r.kind), id, entity.EntityOrderID(), expected+1, data, time.Now().UTC(), expected)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", r.kind, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s %s: %w", r.kind, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", r.kind, id, domain.ErrVersionConflict)
	}
	return nil
}

// Remove удаляет снимок; отсутствие записи не считается ошибкой.
func (r *snapshotRepository[T]) Remove(id string) error {
	ctx, cancel := opContext()
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM aggregate_snapshots WHERE kind = $1 AND id = $2
	`, string(r.kind), id); err != nil {
		return fmt.Errorf("remove %s %s: %w", r.kind, id, err)
	}
	return nil
}

func (r *snapshotRepository[T]) scan(row *sql.Row, what string) (T, error) {
	var (
		zero T
		data []byte
	)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		return zero, fmt.Errorf("get %s: %w", what, err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return zero, fmt.Errorf("decode %s: %w", what, err)
	}
	return entity, nil
}

var (
	_ domain.OrderRepository     = (*snapshotRepository[domain.Order])(nil)
	_ domain.InventoryRepository = (*snapshotRepository[domain.Inventory])(nil)
)
