package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/rollcall/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording frame ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the id is new", func() {
				seen := d.SeenAndRecord(ctx, "frame-1")

				Convey("Then it should return false and record the id", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the id was already seen", func() {
				d.SeenAndRecord(ctx, "frame-1")
				seen := d.SeenAndRecord(ctx, "frame-1")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording ids", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "frame-1")
			d.Unrecord(ctx, "frame-1")
			d.Unrecord(ctx, "missing")

			Convey("Then the id can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "frame-1"), ShouldBeFalse)
			})
		})

		Convey("When the bounded deduper is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"frame-1", "frame-2", "frame-3"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}
			So(d.SeenAndRecord(ctx, "frame-4"), ShouldBeFalse)

			Convey("Then the oldest id was evicted and newer ones are kept", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "frame-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "frame-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "frame-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "frame-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording from the middle of a bounded deduper", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.Unrecord(ctx, "a")
			d.SeenAndRecord(ctx, "c")

			Convey("Then no eviction happens until the bound is reached again", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("frame-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "frame-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10_000))
		const goroutines = 10
		const perGoroutine = 100

		Convey("When the same ids are recorded from many goroutines", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("frame-%d", j)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then every id is reported new exactly once", func() {
				So(fresh, ShouldEqual, perGoroutine)
				So(d.Size(), ShouldEqual, perGoroutine)
			})
		})
	})
}
