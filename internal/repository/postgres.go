package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is the Store backed by a PostgreSQL database.
type Postgres struct {
	*TransactionRepository
	*UserRepository
	*GiftRepository
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		TransactionRepository: NewTransactionRepository(db),
		UserRepository:        NewUserRepository(db),
		GiftRepository:        NewGiftRepository(db),
		db:                    db,
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations. It is idempotent.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migrations up to date")
			return nil
		}
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return fmt.Errorf("database is dirty at version %d, fix manually: %w", dirty.Version, err)
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("migrations completed")
	return nil
}
