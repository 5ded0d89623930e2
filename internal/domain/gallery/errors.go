package gallery

import "errors"

// Sentinel kinds for gallery errors.
var (
	// ErrRefresh means a refresh was aborted; the previous snapshot stays published.
	ErrRefresh = errors.New("gallery refresh failed")

	// ErrImageNotFound is returned by image sources when an identity has no
	// reference image. The identity is skipped, the refresh goes on.
	ErrImageNotFound = errors.New("reference image not found")

	// ErrInvalidImage is returned by image sources when an identity's image
	// reference cannot be used (bad ref, oversized image, rejected request).
	// The identity is skipped, the refresh goes on.
	ErrInvalidImage = errors.New("reference image unusable")
)

// Reasons an identity was left out of a snapshot.
const (
	SkipNoImage           = "no_image"
	SkipDetectionFailed   = "detection_failed"
	SkipNoFace            = "no_face"
	SkipDimensionMismatch = "dimension_mismatch"
	SkipDuplicate         = "duplicate"
	SkipInvalidID         = "invalid_id"
	SkipInvalidRef        = "invalid_ref"
)
