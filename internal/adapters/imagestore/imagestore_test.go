package imagestore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/model"
)

func TestCandidates(t *testing.T) {
	Convey("Given identities with and without an image ref", t, func() {
		So(candidates(model.Identity{ID: "s1", ImageRef: "faces/one.png"}), ShouldResemble, []string{"faces/one.png"})
		So(candidates(model.Identity{ID: " a/b "}), ShouldResemble, []string{"a-b.jpg", "a-b.jpeg", "a-b.png"})
		So(candidates(model.Identity{ID: "CSC/1"}), ShouldResemble, []string{
			"CSC-1.jpg", "CSC-1.jpeg", "CSC-1.png",
			"csc-1.jpg", "csc-1.jpeg", "csc-1.png",
		})
		So(candidates(model.Identity{}), ShouldBeEmpty)
	})
}

func TestDir(t *testing.T) {
	Convey("Given a directory of reference images", t, func() {
		root := t.TempDir()
		So(os.WriteFile(filepath.Join(root, "s1.png"), []byte("png-bytes"), 0o600), ShouldBeNil)
		So(os.MkdirAll(filepath.Join(root, "custom"), 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "custom", "x.jpg"), []byte("jpg-bytes"), 0o600), ShouldBeNil)
		store := NewDir(root)
		ctx := context.Background()

		Convey("The id falls through the extensions", func() {
			data, err := store.Fetch(ctx, model.Identity{ID: "s1"})
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "png-bytes")
		})

		Convey("Upper-case ids find lower-case files", func() {
			data, err := store.Fetch(ctx, model.Identity{ID: "S1"})
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "png-bytes")
		})

		Convey("An explicit ref wins", func() {
			data, err := store.Fetch(ctx, model.Identity{ID: "s2", ImageRef: "custom/x.jpg"})
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "jpg-bytes")
		})

		Convey("A missing image is not found", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "ghost"})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, gallery.ErrImageNotFound), ShouldBeTrue)
		})

		Convey("A ref outside the root is rejected", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "s3", ImageRef: "../etc/passwd"})
			So(errors.Is(err, ErrInvalidRef), ShouldBeTrue)
			So(errors.Is(err, ErrNotFound), ShouldBeFalse)
		})
	})
}

func TestHTTP(t *testing.T) {
	Convey("Given an image server", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/faces/s1.jpeg":
				_, _ = w.Write([]byte("jpeg-bytes"))
			case "/abs/photo":
				_, _ = w.Write([]byte("absolute"))
			case "/faces/broken.jpg":
				w.WriteHeader(http.StatusInternalServerError)
			case "/faces/private.jpg":
				w.WriteHeader(http.StatusForbidden)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()
		store := NewHTTP(srv.URL+"/faces/", 0)
		ctx := context.Background()

		Convey("Relative candidates resolve against the base url", func() {
			data, err := store.Fetch(ctx, model.Identity{ID: "s1"})
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "jpeg-bytes")
		})

		Convey("Absolute refs are used as is", func() {
			data, err := store.Fetch(ctx, model.Identity{ID: "s2", ImageRef: srv.URL + "/abs/photo"})
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "absolute")
		})

		Convey("404 on every candidate is not found", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "ghost"})
			So(errors.Is(err, gallery.ErrImageNotFound), ShouldBeTrue)
		})

		Convey("Server errors are not treated as missing images", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "broken", ImageRef: "broken.jpg"})
			So(err, ShouldNotBeNil)
			So(errors.Is(err, gallery.ErrImageNotFound), ShouldBeFalse)
			So(errors.Is(err, ErrInvalidRef), ShouldBeFalse)
		})

		Convey("Client errors make the ref unusable", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "p", ImageRef: "private.jpg"})
			So(errors.Is(err, ErrInvalidRef), ShouldBeTrue)
			So(errors.Is(err, gallery.ErrInvalidImage), ShouldBeTrue)
		})

		Convey("Relative refs need a base url", func() {
			_, err := NewHTTP("", 0).Fetch(ctx, model.Identity{ID: "s1"})
			So(errors.Is(err, ErrInvalidRef), ShouldBeTrue)
		})
	})
}

func TestS3(t *testing.T) {
	Convey("Given an S3-compatible endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/refs/people/s1.jpg":
				_, _ = w.Write([]byte("object-bytes"))
			case "/refs/people/denied.jpg":
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
			default:
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			}
		}))
		defer srv.Close()

		store, err := NewS3(S3Config{
			Bucket:    "refs",
			Region:    "us-east-1",
			Prefix:    "people",
			Endpoint:  srv.URL,
			AccessKey: "test",
			SecretKey: "test",
		})
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("An existing key is downloaded", func() {
			data, err := store.Fetch(ctx, model.Identity{ID: "s1"})
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "object-bytes")
		})

		Convey("Missing keys are not found", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "ghost"})
			So(errors.Is(err, gallery.ErrImageNotFound), ShouldBeTrue)
		})

		Convey("Access errors abort", func() {
			_, err := store.Fetch(ctx, model.Identity{ID: "x", ImageRef: "denied.jpg"})
			So(err, ShouldNotBeNil)
			So(errors.Is(err, gallery.ErrImageNotFound), ShouldBeFalse)
			So(strings.Contains(err.Error(), "s3://refs/people/denied.jpg"), ShouldBeTrue)
		})
	})

	Convey("A bucket is required", t, func() {
		_, err := NewS3(S3Config{})
		So(err, ShouldNotBeNil)
	})
}
