package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("pipeline"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithDistanceBuckets([]float64{0.5, 1}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.framesProcessed.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_pipeline_frames_processed_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording matcher outcomes", func() {
			before := testutil.ToFloat64(globalManager.matchResults.WithLabelValues("matched"))
			RecordMatch(true, 0.3, true)
			RecordMatch(false, 0, false)

			Convey("Then the labelled counters move", func() {
				So(testutil.ToFloat64(globalManager.matchResults.WithLabelValues("matched")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.matchResults.WithLabelValues("no_match")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When publishing gallery state", func() {
			UpdateGallery(12, 4, 1)

			Convey("Then gauges reflect it", func() {
				So(testutil.ToFloat64(globalManager.gallerySize), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.galleryVersion), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.gallerySkipped), ShouldEqual, 1)
			})
		})

		Convey("When recording marks and HTTP requests", func() {
			RecordMark("marked")
			RecordHTTPRequest("report", "GET", "200")
			RecordHTTPRequestDuration("report", "GET", "200", 12)

			Convey("Then the registry exposes them", func() {
				n, err := testutil.GatherAndCount(GetRegistry(), "rollcall_attendance_marks_total", "rollcall_http_requests_total")
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThanOrEqualTo, 2)
			})
		})

		Convey("When the registry is exported", func() {
			RecordFrameProcessed()
			expected := `
# HELP rollcall_attendance_frames_duplicate_total Frames rejected because their frame id was already seen
# TYPE rollcall_attendance_frames_duplicate_total counter
rollcall_attendance_frames_duplicate_total 0
`
			err := testutil.GatherAndCompare(GetRegistry(), strings.NewReader(expected), "rollcall_attendance_frames_duplicate_total")

			Convey("Then untouched counters start at zero", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
