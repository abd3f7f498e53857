// Package database holds the Postgres plumbing shared by the gym, match and roster repositories
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// DB is what repositories query through
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	PingContext(ctx context.Context) error
}

// instance logs statements slower than slow. A zero threshold disables it.
type instance struct {
	db     *sqlx.DB
	logger ectologger.Logger
	slow   time.Duration
}

func New(db *sqlx.DB, logger ectologger.Logger, slow time.Duration) DB {
	return &instance{db: db, logger: logger, slow: slow}
}

func (i *instance) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	defer i.observe(ctx, query, time.Now())
	return i.db.ExecContext(ctx, query, args...)
}

func (i *instance) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	defer i.observe(ctx, query, time.Now())
	return i.db.GetContext(ctx, dest, query, args...)
}

func (i *instance) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	defer i.observe(ctx, query, time.Now())
	return i.db.SelectContext(ctx, dest, query, args...)
}

func (i *instance) PingContext(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

func (i *instance) observe(ctx context.Context, query string, start time.Time) {
	took := time.Since(start)
	if i.slow <= 0 || took < i.slow {
		return
	}
	i.logger.WithContext(ctx).WithFields(map[string]any{
		"query":   statement(query),
		"took_ms": took.Milliseconds(),
	}).Warn("Slow query")
}

// statement trims a query to its first line for logging
func statement(query string) string {
	query = strings.TrimSpace(query)
	if i := strings.IndexByte(query, '\n'); i > 0 {
		query = query[:i]
	}
	const limit = 120
	if len(query) > limit {
		query = query[:limit] + "..."
	}
	return query
}

type Config struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN is the lib/pq keyword/value form
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Open connects and sizes the pool. Zero pool settings keep the sql.DB defaults.
func Open(ctx context.Context, cfg Config, logger ectologger.Logger) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s at %s:%s: %w", cfg.Name, cfg.Host, cfg.Port, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.WithContext(ctx).WithFields(map[string]any{"database": cfg.Name, "host": cfg.Host}).Info("Connected to postgres")
	return db, nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports a unique index conflict, such as a second open pending match for a pair
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
