package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

type Config struct {
	Driver           string // "postgres" (default) | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the Ent SQL driver with the dialect it speaks.
type DB struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool // postgres only
}

// Driver exposes the underlying Ent driver, mainly for migrations.
func (db *DB) Driver() dialect.Driver { return db.drv }

// Dialect returns the Ent dialect name.
func (db *DB) Dialect() string { return db.dialect }

func (db *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(db.dialect) }

// Open connects to the configured database and wraps it for Ent.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	switch cfg.Driver {
	case "sqlite":
		return openSQLite(ctx, cfg, logger)
	case "", "postgres":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "medimage2report"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for Ent
	sqldb := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "driver", "postgres")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, sqldb), dialect: dialect.Postgres, pool: pool}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", cfg.DSN)
	sqldb, err := stdsql.Open("sqlite", sqliteDSN(cfg.DSN))
	if err != nil {
		return nil, err
	}
	// one writer at a time; avoids SQLITE_BUSY under concurrent workers
	sqldb.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database", "driver", "sqlite")
	return &DB{drv: entsql.OpenDB(dialect.SQLite, sqldb), dialect: dialect.SQLite}, nil
}

// sqliteDSN turns a path or file: URI into a DSN with foreign keys enabled.
func sqliteDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.drv.Close(); err != nil {
		logger.Error("failed to close database driver", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database within timeout.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Debug("pinging database")
	var err error
	if db.pool != nil {
		err = db.pool.Ping(ctx)
	} else {
		err = db.drv.DB().PingContext(ctx)
	}
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// exec runs a builder statement and returns the number of affected rows.
func exec(ctx context.Context, ex dialect.ExecQuerier, b entsql.Querier) (int64, error) {
	query, args := b.Query()
	var res stdsql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// query runs a selector; the caller must Close the returned rows.
func query(ctx context.Context, ex dialect.ExecQuerier, b entsql.Querier) (*entsql.Rows, error) {
	q, args := b.Query()
	rows := &entsql.Rows{}
	if err := ex.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (db *DB) inTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := db.drv.Tx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

func persistErr(op string, err error) error {
	return &common.PersistenceError{Op: op, Cause: err}
}
