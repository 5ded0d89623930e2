// Package matcher finds the gallery identity closest to a face embedding.
package matcher

import (
	"math"

	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

// DefaultThreshold is the distance cut-off used by common 128-d face embedders.
const DefaultThreshold = 0.6

// Result is the outcome of a match. The zero value is NoMatch.
type Result struct {
	Matched    bool    `json:"matched"`
	IdentityID string  `json:"identity_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Distance   float64 `json:"distance"`
	// Candidate is the nearest identity even when it was too far to match.
	Candidate string `json:"-"`
}

// NoMatch is returned when no entry is close enough.
var NoMatch = Result{}

// Distance is the euclidean distance between a and b. Vectors of different
// dimension are infinitely far apart.
func Distance(a, b model.Embedding) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Index results are re-checked with a full scan when the best candidate is
// tied within tieTolerance or lies within nearThreshold (relative) of the
// threshold.
const (
	tieTolerance  = 1e-9
	nearThreshold = 0.1
)

// Match compares query with every snapshot entry and returns the nearest one
// if its distance is strictly below threshold. Among equidistant entries the
// first in gallery order wins.
//
// With an index attached only its candidates are compared, unless the
// outcome is ambiguous: a tie among candidates or a best distance close to
// threshold falls back to the full scan. A unique, clearly accepted candidate
// is trusted without a full scan, so exactness is then as good as the index
// recall.
func Match(query model.Embedding, snap *gallery.Snapshot, threshold float64) Result {
	if snap == nil || snap.Len() == 0 || query.Dim() == 0 {
		return NoMatch
	}

	if ix := snap.Index(); ix != nil {
		if i, ok := ix.Exact(query); ok {
			return result(snap, scan(query, snap, []int{i}), threshold)
		}
		if cands := ix.Candidates(query); len(cands) > 0 {
			sc := scan(query, snap, cands)
			if sc.pos >= 0 && !sc.tied() && sc.dist < threshold*(1-nearThreshold) {
				return result(snap, sc, threshold)
			}
		}
	}
	return result(snap, scan(query, snap, nil), threshold)
}

type scanResult struct {
	pos    int
	dist   float64
	second float64
}

func (r scanResult) tied() bool { return r.second-r.dist <= tieTolerance }

// scan visits positions (all entries when nil) in ascending gallery order.
func scan(query model.Embedding, snap *gallery.Snapshot, positions []int) scanResult {
	r := scanResult{pos: -1, dist: math.Inf(1), second: math.Inf(1)}
	consider := func(i int) {
		d := Distance(query, snap.At(i).Embedding)
		switch {
		case d < r.dist:
			r.second = r.dist
			r.dist = d
			r.pos = i
		case d < r.second:
			r.second = d
		}
	}
	if positions == nil {
		for i := range snap.Len() {
			consider(i)
		}
	} else {
		for _, i := range positions {
			consider(i)
		}
	}
	return r
}

func result(snap *gallery.Snapshot, r scanResult, threshold float64) Result {
	if r.pos < 0 || math.IsInf(r.dist, 1) {
		return NoMatch
	}
	e := snap.At(r.pos)
	if !(r.dist < threshold) {
		return Result{Distance: r.dist, Candidate: e.IdentityID}
	}
	return Result{Matched: true, IdentityID: e.IdentityID, Name: e.Name, Distance: r.dist, Candidate: e.IdentityID}
}

// Matcher applies a fixed threshold and records match metrics.
type Matcher struct {
	threshold float64
}

// New returns a Matcher. Non-positive thresholds fall back to DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured cut-off.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match matches one embedding against snap.
func (m *Matcher) Match(query model.Embedding, snap *gallery.Snapshot) Result {
	r := Match(query, snap, m.threshold)
	metrics.RecordMatch(r.Matched, r.Distance, r.Candidate != "")
	return r
}

// MatchAll matches every detection against the same snapshot, in input order.
func (m *Matcher) MatchAll(dets []model.Detection, snap *gallery.Snapshot) []Result {
	out := make([]Result, len(dets))
	for i, d := range dets {
		out[i] = m.Match(d.Embedding, snap)
	}
	return out
}
