package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/roieman/container-sim/pkg/config"
	"github.com/roieman/container-sim/pkg/logger"
)

// Migrator applies and inspects goose SQL migrations against the same
// pool the rest of the application uses, via pgx's database/sql bridge
// (goose operates on a *sql.DB, pgxpool does not satisfy that interface).
type Migrator struct {
	pool       *pgxpool.Pool
	migrations embed.FS
	dir        string
}

// NewMigrator wires a Migrator over an existing pool.
func NewMigrator(pool *pgxpool.Pool, migrations embed.FS, dir string) *Migrator {
	return &Migrator{pool: pool, migrations: migrations, dir: dir}
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	goose.SetBaseFS(m.migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, m.dir); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	goose.SetBaseFS(m.migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.DownContext(ctx, db, m.dir); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Status reports the applied/pending state of each migration.
func (m *Migrator) Status(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	goose.SetBaseFS(m.migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.StatusContext(ctx, db, m.dir)
}

// RunMigrations applies pending migrations if cfg.AutoMigrate is set,
// otherwise it is a no-op.
func RunMigrations(ctx context.Context, cfg *config.DatabaseConfig, pool *pgxpool.Pool, fs embed.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Info("auto-migrate disabled, skipping")
		return nil
	}

	logger.Info("applying migrations", "dir", dir)
	if err := NewMigrator(pool, fs, dir).Up(ctx); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
