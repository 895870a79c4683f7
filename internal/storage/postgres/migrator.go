package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// MigrationState описывает одну миграцию из встроенного набора.
type MigrationState struct {
	Version int64
	Name    string
	Applied bool
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	provider, err := s.migrationProvider()
	if err != nil {
		return err
	}
	if steps <= 0 {
		if _, err := provider.Up(ctx); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	}

	states, err := collectStates(ctx, provider)
	if err != nil {
		return err
	}
	var pending []int64
	for _, st := range states {
		if !st.Applied {
			pending = append(pending, st.Version)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	target := pending[min(steps, len(pending))-1]
	if _, err := provider.UpTo(ctx, target); err != nil {
		return fmt.Errorf("migrate up to %d: %w", target, err)
	}
	return nil
}

// MigrateDown откатывает миграции.
// steps<=0 интерпретируется как 1 шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	provider, err := s.migrationProvider()
	if err != nil {
		return err
	}

	states, err := collectStates(ctx, provider)
	if err != nil {
		return err
	}
	var applied []int64
	for _, st := range states {
		if st.Applied {
			applied = append(applied, st.Version)
		}
	}
	if len(applied) == 0 {
		return nil
	}

	var target int64
	if steps < len(applied) {
		target = applied[len(applied)-steps-1]
	}
	if _, err := provider.DownTo(ctx, target); err != nil {
		return fmt.Errorf("migrate down to %d: %w", target, err)
	}
	return nil
}

// MigrationStatus возвращает текущую версию и количество применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	states, err := s.Migrations(ctx)
	if err != nil {
		return 0, 0, err
	}

	var (
		version int64
		count   int
	)
	for _, st := range states {
		if !st.Applied {
			continue
		}
		count++
		if st.Version > version {
			version = st.Version
		}
	}
	return version, count, nil
}

// Migrations перечисляет встроенные миграции и отмечает применённые.
func (s *Store) Migrations(ctx context.Context) ([]MigrationState, error) {
	provider, err := s.migrationProvider()
	if err != nil {
		return nil, err
	}
	return collectStates(ctx, provider)
}

func (s *Store) migrationProvider() (*goose.Provider, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotInitialized
	}

	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	// Advisory lock не даёт двум экземплярам сервиса мигрировать одновременно.
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("create migration locker: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, s.db, fsys, goose.WithSessionLocker(locker))
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

func collectStates(ctx context.Context, provider *goose.Provider) ([]MigrationState, error) {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("query migration status: %w", err)
	}

	states := make([]MigrationState, 0, len(statuses))
	for _, st := range statuses {
		states = append(states, MigrationState{
			Version: st.Source.Version,
			Name:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return states, nil
}
