package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrClosed            = errors.New("store closed")
	ErrMigrate           = errors.New("database migration failed")
)
