package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrNotFound   = errors.New("identity not found")
	ErrUnreadable = errors.New("roster unreadable")
)
