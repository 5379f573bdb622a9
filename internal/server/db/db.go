package db

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/auditflow/internal/log"
)

// NewDriver opens the configured database and migrates the schema.
func NewDriver(cfg Config) (dialect.Driver, error) {
	var (
		sqlDB     *sql.DB
		dbDialect string
		err       error
	)

	switch cfg.Dialect {
	case "postgres", "pgx", "postgresdb", "pg", "postgresql":
		sqlDB, err = sql.Open("pgx", cfg.DSN)
		dbDialect = dialect.Postgres
	case "sqlite3", "sqlite", "":
		sqlDB, err = sql.Open("sqlite", cfg.DSN)
		dbDialect = dialect.SQLite
	default:
		return nil, fmt.Errorf("invalid dialect: %s", cfg.Dialect)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbDialect, err)
	}

	switch {
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	case dbDialect == dialect.SQLite:
		// An in-memory sqlite database lives and dies with its connection.
		sqlDB.SetMaxOpenConns(1)
	}

	var drv dialect.Driver = entsql.OpenDB(dbDialect, sqlDB)

	if err := Migrate(context.Background(), drv); err != nil {
		_ = drv.Close()
		return nil, err
	}

	if cfg.Debug {
		drv = dialect.DebugWithContext(drv, func(ctx context.Context, v ...any) {
			log.Debug(ctx, fmt.Sprint(v...))
		})
	}

	return drv, nil
}
