package replay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rollcall/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeServer struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/courses/{course}/frames", func(w http.ResponseWriter, r *http.Request) {
		id := r.FormValue("frame_id")
		switch id {
		case "bad":
			_ = json.NewEncoder(w).Encode(map[string]any{"frame_id": id, "detection_error": "undecodable", "faces": []any{}})
		case "boom":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"frame_id": id,
				"faces": []map[string]string{
					{"identity_id": "A", "status": "marked"},
					{"status": "no_match"},
				},
			})
		}
	})
	mux.HandleFunc("POST /api/v1/courses/{course}/frames/async", func(w http.ResponseWriter, r *http.Request) {
		id := r.FormValue("frame_id")
		s.mu.Lock()
		dup := s.seen[id]
		s.seen[id] = true
		s.mu.Unlock()
		if dup {
			_ = json.NewEncoder(w).Encode(map[string]any{"frame_id": id, "status": "duplicate", "duplicate": true})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"frame_id": id, "status": "accepted"})
	})
	mux.HandleFunc("GET /api/v1/courses/{course}/report", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"course_id": r.PathValue("course"), "present": 1, "absent": 2})
	})
	return mux
}

func writeFrames(dir string, names ...string) {
	for _, n := range names {
		So(os.WriteFile(filepath.Join(dir, n), []byte("img-"+n), 0o600), ShouldBeNil)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a service and a directory of frames", t, func() {
		ctx := context.Background()
		fs := &fakeServer{seen: map[string]bool{}}
		srv := httptest.NewServer(fs.handler())
		defer srv.Close()

		dir := t.TempDir()
		writeFrames(dir, "a.jpg", "b.PNG", "bad.jpg", "boom.jpeg", "notes.txt")
		cfg := &Config{BaseURL: srv.URL, Dir: dir, Course: "CS101", Workers: 3, Timeout: 5 * time.Second}

		Convey("A synchronous replay counts outcomes per frame", func() {
			stats, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.Frames, ShouldEqual, 4)
			So(stats.Submitted, ShouldEqual, int64(4))
			So(stats.Successful, ShouldEqual, int64(2))
			So(stats.Rejected, ShouldEqual, int64(1))
			So(stats.Failed, ShouldEqual, int64(1))
			So(stats.Faces, ShouldEqual, int64(4))
			So(stats.Marked, ShouldEqual, int64(2))
			So(stats.Present, ShouldEqual, 1)
			So(stats.Absent, ShouldEqual, 2)
		})

		Convey("An async replay with repeats sees duplicates", func() {
			cfg.Async = true
			cfg.Repeat = 2
			cfg.Workers = 1
			stats, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.Submitted, ShouldEqual, int64(8))
			So(stats.Successful, ShouldEqual, int64(4))
			So(stats.Duplicate, ShouldEqual, int64(4))
		})

		Convey("An unhealthy service stops the run", func() {
			cfg.BaseURL = srv.URL + "/missing"
			_, err := Run(ctx, cfg)
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}

func TestListFrames(t *testing.T) {
	Convey("Given a directory", t, func() {
		dir := t.TempDir()

		Convey("Only images are listed, in name order, with extensionless ids", func() {
			writeFrames(dir, "b.jpg", "a.png", "c.txt")
			So(os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o700), ShouldBeNil)
			frames, err := listFrames(dir)
			So(err, ShouldBeNil)
			So(frames, ShouldHaveLength, 2)
			So(frames[0].ID, ShouldEqual, "a")
			So(frames[1].ID, ShouldEqual, "b")
		})

		Convey("An empty directory is an error", func() {
			_, err := listFrames(dir)
			So(errors.Is(err, ErrNoFrames), ShouldBeTrue)
		})
	})
}
