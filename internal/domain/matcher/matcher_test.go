package matcher_test

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/matcher"
	"github.com/okian/rollcall/internal/domain/model"
)

func publish(entries ...gallery.Entry) *gallery.Snapshot {
	return gallery.New().Publish(entries)
}

func TestMatch(t *testing.T) {
	convey.Convey("Given a gallery of A and B", t, func() {
		snap := publish(
			gallery.Entry{IdentityID: "A", Name: "Ada", Embedding: model.Embedding{0, 0}},
			gallery.Entry{IdentityID: "B", Name: "Bola", Embedding: model.Embedding{1.2, 0}},
		)

		convey.Convey("When the query is 0.3 from A and 0.9 from B", func() {
			r := matcher.Match(model.Embedding{0.3, 0}, snap, 0.6)

			convey.Convey("Then A is matched", func() {
				convey.So(r.Matched, convey.ShouldBeTrue)
				convey.So(r.IdentityID, convey.ShouldEqual, "A")
				convey.So(r.Name, convey.ShouldEqual, "Ada")
				convey.So(r.Distance, convey.ShouldAlmostEqual, 0.3, 1e-6)
			})
		})

		convey.Convey("When the query equals an entry exactly", func() {
			convey.Convey("Then that entry wins for any positive threshold", func() {
				for _, th := range []float64{1e-9, 0.01, 0.6, 10} {
					r := matcher.Match(model.Embedding{1.2, 0}, snap, th)
					convey.So(r.Matched, convey.ShouldBeTrue)
					convey.So(r.IdentityID, convey.ShouldEqual, "B")
					convey.So(r.Distance, convey.ShouldEqual, 0)
				}
			})
		})

		convey.Convey("When the query is farther than the threshold from everyone", func() {
			r := matcher.Match(model.Embedding{5, 5}, snap, 0.6)

			convey.Convey("Then NoMatch is returned with the nearest distance", func() {
				convey.So(r.Matched, convey.ShouldBeFalse)
				convey.So(r.IdentityID, convey.ShouldBeEmpty)
				convey.So(r.Distance, convey.ShouldBeGreaterThan, 0.6)
			})
		})

		convey.Convey("When the distance equals the threshold", func() {
			r := matcher.Match(model.Embedding{0.5, 0}, snap, 0.5)

			convey.Convey("Then the strict comparison rejects it", func() {
				convey.So(r.Matched, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the query has another dimension", func() {
			convey.So(matcher.Match(model.Embedding{0, 0, 0}, snap, 0.6), convey.ShouldResemble, matcher.NoMatch)
		})

		convey.Convey("When matching many times", func() {
			before := snap.At(0).Embedding.Clone()
			for range 10 {
				matcher.Match(model.Embedding{0.1, 0}, snap, 0.6)
			}

			convey.Convey("Then the snapshot is untouched", func() {
				convey.So(snap.At(0).Embedding, convey.ShouldResemble, before)
				convey.So(snap.Version(), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given equidistant entries", t, func() {
		snap := publish(
			gallery.Entry{IdentityID: "LEFT", Embedding: model.Embedding{-1, 0}},
			gallery.Entry{IdentityID: "RIGHT", Embedding: model.Embedding{1, 0}},
		)

		convey.Convey("Then the first in gallery order wins", func() {
			r := matcher.Match(model.Embedding{0, 0}, snap, 2)
			convey.So(r.IdentityID, convey.ShouldEqual, "LEFT")
		})
	})

	convey.Convey("Given an empty gallery", t, func() {
		convey.Convey("Then every query yields NoMatch", func() {
			convey.So(matcher.Match(model.Embedding{0}, gallery.Empty(), 100), convey.ShouldResemble, matcher.NoMatch)
			convey.So(matcher.Match(model.Embedding{0}, nil, 100), convey.ShouldResemble, matcher.NoMatch)
		})
	})
}

func TestMatchWithIndex(t *testing.T) {
	convey.Convey("Given a large indexed gallery", t, func() {
		rng := rand.New(rand.NewPCG(1, 2))
		entries := make([]gallery.Entry, 300)
		for i := range entries {
			emb := make(model.Embedding, 16)
			for j := range emb {
				emb[j] = rng.Float32() * 10
			}
			entries[i] = gallery.Entry{IdentityID: fmt.Sprintf("ID%03d", i), Embedding: emb}
		}
		snap := gallery.New().Publish(entries, gallery.WithIndex(100, 8))
		convey.So(snap.Index(), convey.ShouldNotBeNil)

		convey.Convey("Then every exact embedding returns its own identity", func() {
			for _, e := range entries {
				r := matcher.Match(e.Embedding, snap, 0.01)
				convey.So(r.IdentityID, convey.ShouldEqual, e.IdentityID)
			}
		})

		convey.Convey("Then far queries still yield NoMatch", func() {
			far := make(model.Embedding, 16)
			for j := range far {
				far[j] = 1000
			}
			convey.So(matcher.Match(far, snap, 0.6).Matched, convey.ShouldBeFalse)
		})
	})
}

func TestMatchWithIndexAmbiguity(t *testing.T) {
	convey.Convey("Given an indexed gallery of unit basis vectors", t, func() {
		const dim = 64
		entries := make([]gallery.Entry, dim)
		for i := range entries {
			emb := make(model.Embedding, dim)
			emb[i] = 1
			entries[i] = gallery.Entry{IdentityID: fmt.Sprintf("ID%02d", i), Embedding: emb}
		}
		indexed := gallery.New().Publish(entries, gallery.WithIndex(1, 16))
		linear := publish(entries...)
		convey.So(indexed.Index(), convey.ShouldNotBeNil)

		convey.Convey("When every entry is equidistant from the query", func() {
			origin := make(model.Embedding, dim)
			r := matcher.Match(origin, indexed, 2)

			convey.Convey("Then the first entry in gallery order wins, as in the linear scan", func() {
				convey.So(r.Matched, convey.ShouldBeTrue)
				convey.So(r.IdentityID, convey.ShouldEqual, "ID00")
				convey.So(r, convey.ShouldResemble, matcher.Match(origin, linear, 2))
			})
		})

		convey.Convey("When the best candidate sits just under the threshold", func() {
			q := make(model.Embedding, dim)
			q[5] = 0.5
			r := matcher.Match(q, indexed, 0.51)

			convey.Convey("Then the result equals the linear scan", func() {
				convey.So(r, convey.ShouldResemble, matcher.Match(q, linear, 0.51))
				convey.So(r.IdentityID, convey.ShouldEqual, "ID05")
			})
		})

		convey.Convey("When the best candidate is unique and well inside the threshold", func() {
			q := make(model.Embedding, dim)
			q[9] = 0.9
			r := matcher.Match(q, indexed, 0.6)

			convey.Convey("Then it matches that entry", func() {
				convey.So(r.IdentityID, convey.ShouldEqual, "ID09")
				convey.So(r.Distance, convey.ShouldAlmostEqual, 0.1, 1e-6)
			})
		})
	})
}

func TestMatcherParallel(t *testing.T) {
	convey.Convey("Given one snapshot shared by many goroutines", t, func() {
		snap := publish(
			gallery.Entry{IdentityID: "A", Embedding: model.Embedding{0, 0}},
			gallery.Entry{IdentityID: "B", Embedding: model.Embedding{3, 4}},
		)
		m := matcher.New(0)
		convey.So(m.Threshold(), convey.ShouldEqual, matcher.DefaultThreshold)

		var wg sync.WaitGroup
		results := make([][]matcher.Result, 16)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = m.MatchAll([]model.Detection{
					{Embedding: model.Embedding{0.1, 0}},
					{Embedding: model.Embedding{3, 4.1}},
					{Embedding: model.Embedding{10, 10}},
				}, snap)
			}(i)
		}
		wg.Wait()

		convey.Convey("Then every goroutine sees the same answers", func() {
			for _, rs := range results {
				convey.So(rs[0].IdentityID, convey.ShouldEqual, "A")
				convey.So(rs[1].IdentityID, convey.ShouldEqual, "B")
				convey.So(rs[2].Matched, convey.ShouldBeFalse)
			}
		})
	})
}

func TestDistance(t *testing.T) {
	convey.Convey("Distance is euclidean and rejects mixed dimensions", t, func() {
		convey.So(matcher.Distance(model.Embedding{0, 0}, model.Embedding{3, 4}), convey.ShouldEqual, 5)
		convey.So(math.IsInf(matcher.Distance(model.Embedding{0}, model.Embedding{0, 0}), 1), convey.ShouldBeTrue)
	})
}
