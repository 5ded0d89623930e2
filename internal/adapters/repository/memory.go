package repository

import (
	"context"
	"sync"

	"github.com/okian/rollcall/internal/domain/model"
)

type dayKey struct {
	course string
	date   string
}

// MemoryStore is an in-process, append-only ledger store.
type MemoryStore struct {
	mu     sync.RWMutex
	byDay  map[dayKey][]model.AttendanceEvent
	marked map[string]struct{}
	total  int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDay:  make(map[dayKey][]model.AttendanceEvent),
		marked: make(map[string]struct{}),
	}
}

// Append stores ev.
func (s *MemoryStore) Append(ctx context.Context, ev model.AttendanceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ev)
	return nil
}

// AppendIfAbsent stores ev unless its key was seen before.
func (s *MemoryStore) AppendIfAbsent(ctx context.Context, ev model.AttendanceEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.marked[ev.Key()]; ok {
		return false, nil
	}
	s.appendLocked(ev)
	return true, nil
}

func (s *MemoryStore) appendLocked(ev model.AttendanceEvent) {
	k := dayKey{course: ev.CourseID, date: ev.Date}
	s.byDay[k] = append(s.byDay[k], ev)
	s.marked[ev.Key()] = struct{}{}
	s.total++
}

// Scan visits the events of course on date in append order. It reads a copy
// taken under the lock, so callbacks may append.
func (s *MemoryStore) Scan(ctx context.Context, courseID, date string, fn func(model.AttendanceEvent) bool) error {
	s.mu.RLock()
	events := s.byDay[dayKey{course: courseID, date: date}]
	events = events[:len(events):len(events)]
	s.mu.RUnlock()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(ev) {
			return nil
		}
	}
	return nil
}

// Count returns the number of stored events.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
