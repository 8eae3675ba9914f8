package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/config"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database is the postgres connection shared by the repositories
type Database struct {
	DB *gorm.DB
}

type openOptions struct {
	gormLogger   gormlogger.Interface
	logger       *zap.Logger
	connectRetry time.Duration
}

// Option configures Open
type Option func(*openOptions)

// WithGormLogger routes GORM query logs to l
func WithGormLogger(l gormlogger.Interface) Option {
	return func(o *openOptions) {
		o.gormLogger = l
	}
}

// WithLogger sets the logger used to report connection attempts
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) {
		o.logger = l
	}
}

// WithConnectRetry keeps retrying the initial ping for up to d
func WithConnectRetry(d time.Duration) Option {
	return func(o *openOptions) {
		o.connectRetry = d
	}
}

// Open connects to postgres and applies the pool settings of cfg. Driver
// errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := openOptions{
		gormLogger: gormlogger.Default.LogMode(gormlogger.Silent),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 o.gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := waitForDatabase(ctx, sqlDB, o); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Database{DB: db}, nil
}

// waitForDatabase pings until the server answers or the retry budget is spent
func waitForDatabase(ctx context.Context, sqlDB *sql.DB, o openOptions) error {
	if o.connectRetry <= 0 {
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = o.connectRetry

	err := backoff.RetryNotify(
		func() error { return sqlDB.PingContext(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			o.logger.Warn("Database not reachable yet", zap.Error(err), zap.Duration("retry_in", next))
		},
	)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.SQLDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping performs a trivial round trip to the store
func (d *Database) Ping(ctx context.Context) error {
	var one int
	if err := d.DB.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// SQLDB returns the underlying connection pool
func (d *Database) SQLDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}
