// Package mpostgres owns the single Postgres connection used by every
// service, running schema migrations on first connect the same way
// common/mpostgres/postgres.go does for the teacher's components.
package mpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

// PostgresConnection is a hub for the service's Postgres connection.
type PostgresConnection struct {
	ConnectionString string
	DBName           string
	MigrationsPath   string
	Logger           mlog.Logger

	db        *sql.DB
	Connected bool
}

// Connect opens the database, runs pending migrations and pings it. It is
// idempotent: calling it again after a successful connect is a no-op.
func (pc *PostgresConnection) Connect() error {
	if pc.Connected {
		return nil
	}

	if pc.Logger == nil {
		pc.Logger = mlog.NoneLogger{}
	}

	pc.Logger.Info("connecting to postgres...")

	db, err := sql.Open("pgx", pc.ConnectionString)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}

	if pc.MigrationsPath != "" {
		driver, err := postgres.WithInstance(db, &postgres.Config{
			MultiStatementEnabled: true,
			DatabaseName:          pc.DBName,
			SchemaName:            "public",
		})
		if err != nil {
			return fmt.Errorf("build migration driver: %w", err)
		}

		m, err := migrate.NewWithDatabaseInstance("file://"+pc.MigrationsPath, pc.DBName, driver)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	if err := db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	pc.db = db
	pc.Connected = true

	pc.Logger.Info("connected to postgres")

	return nil
}

// GetDB returns the underlying *sql.DB, connecting lazily if necessary.
func (pc *PostgresConnection) GetDB(ctx context.Context) (*sql.DB, error) {
	if pc.db == nil {
		if err := pc.Connect(); err != nil {
			return nil, err
		}
	}

	return pc.db, nil
}
