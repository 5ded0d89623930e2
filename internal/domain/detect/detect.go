// Package detect declares the contract of the face detector/embedder.
//
// The models themselves live behind this boundary; callers only see a finite,
// possibly empty list of detections per image.
package detect

import (
	"context"
	"errors"
	"sort"

	"github.com/okian/rollcall/internal/domain/model"
)

// Detector turns raw image bytes into face detections.
type Detector interface {
	DetectFaces(ctx context.Context, image []byte) ([]model.Detection, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, image []byte) ([]model.Detection, error)

// DetectFaces calls f.
func (f DetectorFunc) DetectFaces(ctx context.Context, image []byte) ([]model.Detection, error) {
	return f(ctx, image)
}

// Best returns the detection with the highest score. Among equal scores the
// earliest wins.
func Best(dets []model.Detection) (model.Detection, bool) {
	if len(dets) == 0 {
		return model.Detection{}, false
	}
	best := 0
	for i := 1; i < len(dets); i++ {
		if dets[i].Score > dets[best].Score {
			best = i
		}
	}
	return dets[best], true
}

// ByScore sorts detections by descending score, keeping input order for ties.
func ByScore(dets []model.Detection) {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Score > dets[j].Score })
}

// IsUnavailable reports whether err means the detector host is down.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
