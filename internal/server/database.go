package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/repository"
)

// ConnectDB opens the configured database, verifies it responds and, when
// AutoMigrate is set, brings the schema up to date.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, cfg.DialTimeout, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db, logger); err != nil {
			logger.Error("database migration failed", "error", err)
			db.Close(logger)
			return nil, err
		}
	}
	return db, nil
}
