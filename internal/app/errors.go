package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrRefreshInProgress = errors.New("gallery refresh already in progress")
	ErrBackpressure      = errors.New("frame queue full")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownIdentity   = errors.New("identity not in roster")
	ErrNotEnrolled       = errors.New("identity not enrolled in course")
)
