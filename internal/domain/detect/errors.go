package detect

import "errors"

// Sentinel kinds for detector failures.
var (
	// ErrDetection means a single image could not be processed (undecodable
	// input, rejected by the model). Callers treat it as "no detections".
	ErrDetection = errors.New("face detection failed")

	// ErrUnavailable means the detector itself is unusable (host outage,
	// model not loaded). It is retryable.
	ErrUnavailable = errors.New("face detector unavailable")
)
