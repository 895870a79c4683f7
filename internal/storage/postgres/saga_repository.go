package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

type sagaRepository struct {
	db *sql.DB
}

// NewSagaRepository создаёт PostgreSQL-реализацию SagaRepository.
// Экземпляры переживают рестарт процесса, и reaper видит их после старта.
func NewSagaRepository(store *Store) domain.SagaRepository {
	return &sagaRepository{db: store.DB()}
}

func (r *sagaRepository) Get(kind domain.SagaKind, orderID string) (domain.SagaInstance, error) {
	ctx, cancel := opContext()
	defer cancel()

	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM saga_instances
		WHERE kind = $1 AND order_id = $2
	`, string(kind), orderID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SagaInstance{}, fmt.Errorf("%s saga for order %s: %w", kind, orderID, domain.ErrNotFound)
		}
		return domain.SagaInstance{}, fmt.Errorf("get %s saga: %w", kind, err)
	}
	return decodeSaga(data)
}

func (r *sagaRepository) Save(inst domain.SagaInstance) error {
	ctx, cancel := opContext()
	defer cancel()

	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal %s saga: %w", inst.Kind, err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO saga_instances (kind, order_id, stage, data, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (kind, order_id) DO UPDATE
		SET stage = EXCLUDED.stage,
		    data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`, string(inst.Kind), inst.OrderID, string(inst.Stage), data, inst.StartedAt, inst.UpdatedAt); err != nil {
		return fmt.Errorf("save %s saga for order %s: %w", inst.Kind, inst.OrderID, err)
	}
	return nil
}

func (r *sagaRepository) Delete(kind domain.SagaKind, orderID string) error {
	ctx, cancel := opContext()
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM saga_instances WHERE kind = $1 AND order_id = $2
	`, string(kind), orderID); err != nil {
		return fmt.Errorf("delete %s saga for order %s: %w", kind, orderID, err)
	}
	return nil
}

// List возвращает активные экземпляры от самых старых к новым.
func (r *sagaRepository) List() ([]domain.SagaInstance, error) {
	ctx, cancel := opContext()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT data FROM saga_instances
		ORDER BY started_at ASC, order_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sagas: %w", err)
	}
	defer rows.Close()

	result := make([]domain.SagaInstance, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan saga: %w", err)
		}
		inst, err := decodeSaga(data)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sagas: %w", err)
	}
	return result, nil
}

func decodeSaga(data []byte) (domain.SagaInstance, error) {
	var inst domain.SagaInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return domain.SagaInstance{}, fmt.Errorf("decode saga: %w", err)
	}
	return inst, nil
}

var _ domain.SagaRepository = (*sagaRepository)(nil)
