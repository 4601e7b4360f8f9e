package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultTimeout = 10 * time.Second

// Config captures the settings for opening the Postgres user store.
type Config struct {
	DSN     string
	Timeout time.Duration
}

// Connect opens a gorm handle, pings the server and migrates the users table.
// TranslateError is enabled so unique violations surface as gorm.ErrDuplicatedKey.
func Connect(ctx context.Context, cfg Config) (*gorm.DB, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&userModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return db, nil
}

// Checker reports database reachability for the readiness endpoint.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

func (c *Checker) Name() string { return "postgres" }

func (c *Checker) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
