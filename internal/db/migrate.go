package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationStatus describes one embedded migration.
type MigrationStatus struct {
	Version int64
	Name    string
	Applied bool
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	provider *goose.Provider
	close    func() error
}

// NewMigrator opens a dedicated database/sql connection for goose.
func NewMigrator(ctx context.Context, databaseURL string) (*Migrator, error) {
	sqlDB, err := goose.OpenDBWithDriver("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = ConnectTimeout
	if err := backoff.Retry(func() error {
		return sqlDB.PingContext(ctx)
	}, backoff.WithContext(policy, ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return &Migrator{provider: provider, close: sqlDB.Close}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.provider.Down(ctx); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

// Status lists every embedded migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Name:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

// Close releases the migration connection.
func (m *Migrator) Close() error {
	return m.close()
}

// Migrate applies every pending migration against databaseURL.
func Migrate(ctx context.Context, databaseURL string) error {
	m, err := NewMigrator(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	_, err = m.Up(ctx)
	return err
}
