package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/logger"
)

// Open connects to the configured database, retrying the initial ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	driverName := "postgres"
	dsn := cfg.PostgresDSN
	if cfg.Driver == config.DriverSQLite {
		driverName = sqliteshim.ShimName
		dsn = cfg.SQLiteDSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured for driver %q", cfg.Driver)
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < cfg.ConnectRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", cfg.Driver, i+1, cfg.ConnectRetries))
		sqldb, err = sql.Open(driverName, dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open %s: %v", cfg.Driver, err))
		} else if err = sqldb.PingContext(ctx); err == nil {
			break
		} else {
			log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
			sqldb.Close()
		}
		if i < cfg.ConnectRetries-1 {
			time.Sleep(cfg.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, cfg.ConnectRetries, err)
	}

	if cfg.Driver == config.DriverSQLite {
		// One connection keeps an in-memory database alive and serializes writers.
		sqldb.SetMaxOpenConns(1)
		log.Info("DATABASE", "✅ SQLite connection successful")
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
