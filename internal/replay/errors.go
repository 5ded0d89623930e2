package replay

import "errors"

// Error constants.
var (
	ErrNoFrames  = errors.New("no frame images found")
	ErrUnhealthy = errors.New("service unhealthy")
)
