package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrClosed = errors.New("frame queue closed")
	ErrFull   = errors.New("frame queue full")
)
