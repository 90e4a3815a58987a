// Package store persists scales, measurements, user profiles, and raw
// uploads to a relational database. SQLite (default) and PostgreSQL are
// supported through the same GORM codebase; callers treat them
// identically.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config contains database configuration.
type Config struct {
	// URL selects the backend: postgres:// or postgresql:// connection
	// strings open PostgreSQL, anything else is treated as a SQLite path
	// (an optional sqlite:// prefix is stripped; ":memory:" works).
	URL string `mapstructure:"url" validate:"required" yaml:"url"`
}

// Store wraps the database connection. All methods are safe for concurrent
// use; the underlying pool bounds effective write concurrency.
type Store struct {
	db *gorm.DB
}

// New opens the database described by config and migrates the schema.
func New(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		dialector = postgres.Open(cfg.URL)

	default:
		path := strings.TrimPrefix(cfg.URL, "sqlite://")
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
			// WAL for concurrent readers, busy_timeout to ride out the
			// single-writer lock instead of erroring.
			path += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying GORM handle. Useful for advanced queries and
// tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn against a transactional view of the store. A non-nil
// error from fn rolls back everything written inside it.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// isUniqueConstraintError checks for a unique constraint violation from
// either backend.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
