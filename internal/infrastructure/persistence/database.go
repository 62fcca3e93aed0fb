package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/freshtable/billing/internal/infrastructure/config"
	"github.com/freshtable/billing/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// DatabaseOptions carries the cross-cutting settings applied to a new connection
type DatabaseOptions struct {
	Logger       *zap.Logger
	LogLevel     string // silent, error, warn, info
	TraceQueries bool
	// SlowQuery and LockWait override the gorm logger thresholds when set
	SlowQuery time.Duration
	LockWait  time.Duration
}

// NewDatabase opens the Postgres connection pool, bridges gorm logging into zap
// and, when enabled, installs the otelgorm tracing plugin.
func NewDatabase(cfg *config.DatabaseConfig, opts DatabaseOptions) (*Database, error) {
	zapLogger := opts.Logger
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	var logOpts []logger.GormLoggerOption
	if opts.SlowQuery > 0 {
		logOpts = append(logOpts, logger.WithSlowThreshold(opts.SlowQuery))
	}
	if opts.LockWait > 0 {
		logOpts = append(logOpts, logger.WithLockWaitThreshold(opts.LockWait))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(opts.LogLevel), logOpts...),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.TraceQueries {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithoutQueryVariables())); err != nil {
			return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// PingContext checks that the pool can still reach Postgres. It backs /health.
func (d *Database) PingContext(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// PoolStats reports pool pressure. WaitCount climbs when requests queue for a
// connection while other transactions hold invoice or credit row locks.
func (d *Database) PoolStats() PoolStats {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return PoolStats{}
	}
	stats := sqlDB.Stats()
	return PoolStats{
		MaxOpen:      stats.MaxOpenConnections,
		Open:         stats.OpenConnections,
		InUse:        stats.InUse,
		Idle:         stats.Idle,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration.String(),
	}
}

// PoolStats is the JSON view of the connection pool served on /system/info
type PoolStats struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}
