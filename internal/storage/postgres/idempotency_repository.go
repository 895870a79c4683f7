package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

const idempotencyColumns = `command, resource_id, key, request_hash, response_body, http_status, status, ttl_at, created_at, updated_at`

type idempotencyRepository struct {
	db *sql.DB
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{db: store.DB()}
}

func normalizeReply(scope domain.IdempotencyScope, key string) (domain.IdempotencyScope, string, error) {
	scope, err := scope.Normalize()
	if err != nil {
		return scope, "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return scope, "", domain.ErrIdempotencyKeyRequired
	}
	return scope, key, nil
}

// CreateProcessing занимает ключ в пределах scope одним upsert: просроченная
// строка перезаписывается, живая остаётся нетронутой и RETURNING пуст.
func (r *idempotencyRepository) CreateProcessing(scope domain.IdempotencyScope, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	scope, key, err := normalizeReply(scope, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(24 * time.Hour)
	}

	ctx, cancel := opContext()
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO idempotency_keys (`+idempotencyColumns+`)
		VALUES ($1,$2,$3,$4,NULL,NULL,$5,$6,$7,$7)
		ON CONFLICT (command, resource_id, key) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
		    response_body = NULL,
		    http_status = NULL,
		    status = EXCLUDED.status,
		    ttl_at = EXCLUDED.ttl_at,
		    created_at = EXCLUDED.created_at,
		    updated_at = EXCLUDED.updated_at
		WHERE idempotency_keys.ttl_at <= $7
		RETURNING `+idempotencyColumns,
		scope.Command, scope.ResourceID, key, requestHash,
		string(domain.IdempotencyStatusProcessing), ttlAt, now,
	)
	record, err := scanIdempotencyRecord(row)
	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, domain.ErrIdempotencyKeyNotFound):
		held, getErr := r.Get(scope, key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		if held.RequestHash != requestHash {
			return held, domain.ErrIdempotencyHashMismatch
		}
		return held, domain.ErrIdempotencyKeyAlreadyExists
	case isUniqueViolation(err):
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	default:
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record %s: %w", scope, err)
	}
}

func (r *idempotencyRepository) Get(scope domain.IdempotencyScope, key string) (domain.IdempotencyRecord, error) {
	scope, key, err := normalizeReply(scope, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := opContext()
	defer cancel()

	record, err := scanIdempotencyRecord(r.db.QueryRowContext(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_keys
		 WHERE command = $1 AND resource_id = $2 AND key = $3`,
		scope.Command, scope.ResourceID, key))
	if err != nil && !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record %s: %w", scope, err)
	}
	return record, err
}

func (r *idempotencyRepository) MarkDone(scope domain.IdempotencyScope, key string, responseBody []byte, httpStatus int) error {
	return r.settle(scope, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(scope domain.IdempotencyScope, key string, responseBody []byte, httpStatus int) error {
	return r.settle(scope, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired удаляет не более limit просроченных записей, начиная с самых
// старых; limit<=0 снимает ограничение.
func (r *idempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := opContext()
	defer cancel()

	query := `DELETE FROM idempotency_keys WHERE ttl_at <= $1`
	args := []any{before}
	if limit > 0 {
		query = `
			DELETE FROM idempotency_keys
			WHERE (command, resource_id, key) IN (
				SELECT command, resource_id, key FROM idempotency_keys
				WHERE ttl_at <= $1
				ORDER BY ttl_at ASC
				LIMIT $2
			)`
		args = append(args, limit)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("idempotency rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *idempotencyRepository) settle(scope domain.IdempotencyScope, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	scope, key, err := normalizeReply(scope, key)
	if err != nil {
		return err
	}

	ctx, cancel := opContext()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_body = $1,
		    http_status = $2,
		    status = $3,
		    updated_at = $4
		WHERE command = $5 AND resource_id = $6 AND key = $7
	`, responseBody, httpStatus, string(status), time.Now().UTC(), scope.Command, scope.ResourceID, key)
	if err != nil {
		return fmt.Errorf("mark idempotency record %s %s: %w", scope, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("idempotency rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func scanIdempotencyRecord(row *sql.Row) (domain.IdempotencyRecord, error) {
	var (
		record       domain.IdempotencyRecord
		status       string
		responseBody []byte
		httpStatus   sql.NullInt64
	)
	err := row.Scan(
		&record.Scope.Command,
		&record.Scope.ResourceID,
		&record.Key,
		&record.RequestHash,
		&responseBody,
		&httpStatus,
		&status,
		&record.TTLAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, err
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for %s %s", status, record.Scope, record.Key)
	}
	if len(responseBody) > 0 {
		record.ResponseBody = append([]byte(nil), responseBody...)
	}
	if httpStatus.Valid {
		record.HTTPStatus = int(httpStatus.Int64)
	}
	record.TTLAt = record.TTLAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
