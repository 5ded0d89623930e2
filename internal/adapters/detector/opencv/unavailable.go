//go:build !opencv

// Package opencv detects faces in process with OpenCV DNN models.
//
// This build has no OpenCV support; rebuild with -tags opencv.
package opencv

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/model"
)

// Detector is unavailable without the opencv build tag.
type Detector struct {
	minScore float64
}

var _ detect.Detector = (*Detector)(nil)

// New always fails with ErrUnavailable in this build.
func New(_, _, _ string, _ ...Option) (*Detector, error) {
	return nil, fmt.Errorf("%w: built without opencv support", detect.ErrUnavailable)
}

// DetectFaces always fails with ErrUnavailable in this build.
func (d *Detector) DetectFaces(context.Context, []byte) ([]model.Detection, error) {
	return nil, fmt.Errorf("%w: built without opencv support", detect.ErrUnavailable)
}

// Close is a no-op.
func (d *Detector) Close() error { return nil }
