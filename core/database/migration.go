package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
)

// Migration is one schema step. Statements run in a single transaction
// together with the user_version bump.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// Migrator applies migrations in version order, tracking progress in
// SQLite's user_version pragma.
type Migrator struct {
	pool       *Pool
	migrations []Migration
	logger     *slog.Logger
}

func NewMigrator(pool *Pool, migrations []Migration) *Migrator {
	ordered := slices.Clone(migrations)
	slices.SortFunc(ordered, func(a, b Migration) int { return a.Version - b.Version })
	return &Migrator{pool: pool, migrations: ordered, logger: slog.Default()}
}

func (m *Migrator) WithLogger(logger *slog.Logger) *Migrator {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Migrate applies every pending migration and reports how many ran. A failed
// step rolls back on its own and stops the run.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.validate(); err != nil {
		return 0, err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	for i, step := range pending {
		if err := m.apply(ctx, step); err != nil {
			return i, fmt.Errorf("migration %d (%s): %w", step.Version, step.Description, err)
		}
		m.logger.Debug("applied migration", "db", m.pool.Path(), "version", step.Version, "description", step.Description)
	}
	return len(pending), nil
}

func (m *Migrator) validate() error {
	for i, step := range m.migrations {
		if step.Version <= 0 {
			return fmt.Errorf("migration %q: version must be positive", step.Description)
		}
		if i > 0 && m.migrations[i-1].Version == step.Version {
			return fmt.Errorf("duplicate migration version %d", step.Version)
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, step Migration) error {
	return m.pool.Transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range step.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		// PRAGMA does not accept bound parameters.
		_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.Version))
		return err
	})
}

func (m *Migrator) CurrentVersion() (int, error) {
	return m.pool.Version()
}

// PendingMigrations lists migrations newer than the database, oldest first.
func (m *Migrator) PendingMigrations() ([]Migration, error) {
	current, err := m.pool.Version()
	if err != nil {
		return nil, err
	}
	idx, _ := slices.BinarySearchFunc(m.migrations, current+1, func(step Migration, target int) int {
		return step.Version - target
	})
	return slices.Clone(m.migrations[idx:]), nil
}
