// Package database opens the relational store backing user accounts.
package database

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zhouzirui/realty-assistant/backend/internal/config"
)

// Open connects to the configured database and verifies it answers a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access %s pool: %w", cfg.Driver, err)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}

	log.Printf("[db] connected to %s database", cfg.Driver)
	return db, nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PostgresDSN renders the key/value connection string for cfg.
func PostgresDSN(cfg config.DatabaseConfig) string {
	timeout := int(cfg.ConnectTimeout.Seconds())
	if timeout < 1 {
		timeout = 1
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		quoteValue(cfg.Host), cfg.Port, quoteValue(cfg.User), quoteValue(cfg.Password), quoteValue(cfg.Name), cfg.SSLMode, timeout)
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(PostgresDSN(cfg)), nil
	case "sqlite":
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func pingTimeout(cfg config.DatabaseConfig) time.Duration {
	if cfg.ConnectTimeout <= 0 {
		return time.Second
	}
	return cfg.ConnectTimeout
}

// quoteValue escapes a libpq key/value so whitespace and quotes survive.
func quoteValue(v string) string {
	if v == "" {
		return "''"
	}
	escaped := make([]rune, 0, len(v)+2)
	needsQuotes := false
	for _, r := range v {
		switch r {
		case '\\', '\'':
			escaped = append(escaped, '\\', r)
			needsQuotes = true
		default:
			if unicode.IsSpace(r) {
				needsQuotes = true
			}
			escaped = append(escaped, r)
		}
	}
	if !needsQuotes {
		return v
	}
	return "'" + string(escaped) + "'"
}
