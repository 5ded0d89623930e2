package detect_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBest(t *testing.T) {
	Convey("Given detections with scores", t, func() {
		dets := []model.Detection{
			{Box: model.BoundingBox{X: 1}, Score: 0.7},
			{Box: model.BoundingBox{X: 2}, Score: 0.9},
			{Box: model.BoundingBox{X: 3}, Score: 0.9},
		}

		Convey("Then Best picks the first highest score", func() {
			best, ok := detect.Best(dets)
			So(ok, ShouldBeTrue)
			So(best.Box.X, ShouldEqual, 2)
		})

		Convey("Then ByScore keeps ties stable", func() {
			detect.ByScore(dets)
			So(dets[0].Box.X, ShouldEqual, 2)
			So(dets[1].Box.X, ShouldEqual, 3)
			So(dets[2].Box.X, ShouldEqual, 1)
		})

		Convey("Then an empty list has no best", func() {
			_, ok := detect.Best(nil)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestDetectorFunc(t *testing.T) {
	Convey("Given a detector func wrapping an outage", t, func() {
		d := detect.DetectorFunc(func(context.Context, []byte) ([]model.Detection, error) {
			return nil, fmt.Errorf("dial model host: %w", detect.ErrUnavailable)
		})
		_, err := d.DetectFaces(context.Background(), []byte("x"))

		Convey("Then the error is classified as unavailable", func() {
			So(detect.IsUnavailable(err), ShouldBeTrue)
			So(errors.Is(err, detect.ErrDetection), ShouldBeFalse)
		})
	})
}
