package gallery

import (
	"sync"
	"sync/atomic"
	"time"
)

// Gallery holds the currently published snapshot.
type Gallery struct {
	current atomic.Pointer[Snapshot]
	// publishMu orders publications so versions are strictly increasing.
	publishMu sync.Mutex
	clock     func() time.Time
}

// New returns a gallery publishing the empty snapshot.
func New() *Gallery {
	g := &Gallery{clock: time.Now}
	g.current.Store(Empty())
	return g
}

// Snapshot returns the published snapshot. It is never nil.
func (g *Gallery) Snapshot() *Snapshot {
	return g.current.Load()
}

// Publish builds a snapshot from entries and makes it current.
func (g *Gallery) Publish(entries []Entry, opts ...PublishOption) *Snapshot {
	var po publishOptions
	for _, opt := range opts {
		opt(&po)
	}

	g.publishMu.Lock()
	defer g.publishMu.Unlock()

	next := newSnapshot(g.current.Load().Version()+1, g.clock(), entries)
	if po.indexMinSize > 0 && next.Len() >= po.indexMinSize {
		next.index = buildIndex(next.entries, po.indexCandidates)
	}
	g.current.Store(next)
	return next
}

type publishOptions struct {
	indexMinSize    int
	indexCandidates int
}

// PublishOption tunes snapshot construction.
type PublishOption func(*publishOptions)

// WithIndex attaches an HNSW index when the snapshot has at least minSize
// entries; searches return k candidates.
func WithIndex(minSize, k int) PublishOption {
	return func(o *publishOptions) {
		if minSize > 0 && k > 0 {
			o.indexMinSize = minSize
			o.indexCandidates = k
		}
	}
}
