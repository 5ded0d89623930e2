package repository

import (
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the SQL-backed stores.
type Option func(*sqlOptions)

type sqlOptions struct {
	maxOpenConns int
	maxIdleConns int
	connLifetime time.Duration
	migrate      bool
	logger       logger.Logger
}

func defaultSQLOptions() sqlOptions {
	return sqlOptions{
		maxOpenConns: 10,
		maxIdleConns: 2,
		connLifetime: time.Hour,
		migrate:      true,
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *sqlOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns sets the number of idle connections kept.
func WithMaxIdleConns(n int) Option {
	return func(o *sqlOptions) {
		if n >= 0 {
			o.maxIdleConns = n
		}
	}
}

// WithConnMaxLifetime recycles connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *sqlOptions) {
		if d > 0 {
			o.connLifetime = d
		}
	}
}

// WithAutoMigrate controls whether schema migrations run on open. On by default.
func WithAutoMigrate(enabled bool) Option {
	return func(o *sqlOptions) {
		o.migrate = enabled
	}
}

// WithLogger overrides the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *sqlOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
