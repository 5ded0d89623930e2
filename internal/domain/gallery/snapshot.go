// Package gallery owns the set of known face embeddings used for matching.
//
// A Snapshot is immutable once built. Refresh builds a complete new snapshot
// and publishes it with a single atomic pointer swap, so matchers always see
// either the previous or the next gallery, never a mix.
package gallery

import (
	"iter"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// Entry is one identity with its reference embedding.
type Entry struct {
	IdentityID string          `json:"identity_id"`
	Name       string          `json:"name"`
	Embedding  model.Embedding `json:"-"`
}

// Snapshot is a versioned, read-only view of the gallery.
type Snapshot struct {
	version uint64
	builtAt time.Time
	entries []Entry
	byID    map[string]int
	dim     int
	index   *Index
}

// newSnapshot copies entries so later changes to the input cannot leak in.
func newSnapshot(version uint64, builtAt time.Time, entries []Entry) *Snapshot {
	s := &Snapshot{
		version: version,
		builtAt: builtAt,
		entries: make([]Entry, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		e.Embedding = e.Embedding.Clone()
		s.entries[i] = e
		s.byID[e.IdentityID] = i
		if s.dim == 0 {
			s.dim = e.Embedding.Dim()
		}
	}
	return s
}

// Empty returns the snapshot published before any refresh.
func Empty() *Snapshot {
	return newSnapshot(0, time.Time{}, nil)
}

// Version increases by one with every published snapshot.
func (s *Snapshot) Version() uint64 { return s.version }

// BuiltAt is the time the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len is the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Dim is the embedding dimension shared by all entries, 0 when empty.
func (s *Snapshot) Dim() int { return s.dim }

// At returns the i-th entry in gallery order. The embedding must not be modified.
func (s *Snapshot) At(i int) Entry { return s.entries[i] }

// All iterates entries in gallery order.
func (s *Snapshot) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i, e := range s.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Lookup finds an entry by identity id.
func (s *Snapshot) Lookup(identityID string) (Entry, bool) {
	i, ok := s.byID[identityID]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// IDs lists identity ids in gallery order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.IdentityID
	}
	return ids
}

// Index returns the approximate nearest-neighbour index, or nil.
func (s *Snapshot) Index() *Index { return s.index }
