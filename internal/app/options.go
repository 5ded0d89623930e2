package service

import (
	"time"

	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of frame workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued frames.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submitted frame ids are remembered.
// Zero or negative means unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithThreshold sets the match distance threshold.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

// WithPolicy sets the ledger idempotency policy.
func WithPolicy(p ledger.Policy) Option {
	return func(s *Service) {
		if p.Valid() {
			s.policy = p
		}
	}
}

// WithLocation sets the location used to derive attendance days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRequireEnrollment rejects marks for identities outside the course.
func WithRequireEnrollment(required bool) Option {
	return func(s *Service) {
		s.requireEnrollment = required
	}
}

// WithEmbeddingCache keeps reference embeddings between refreshes.
func WithEmbeddingCache(c gallery.EmbeddingCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithRefreshConcurrency bounds parallel reference extractions.
func WithRefreshConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshConcurrency = n
		}
	}
}

// WithRefreshTimeout bounds a single gallery refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// WithRefreshOnStart refreshes the gallery during Start.
func WithRefreshOnStart(enabled bool) Option {
	return func(s *Service) {
		s.refreshOnStart = enabled
	}
}

// WithRefreshProgress reports per-identity refresh progress.
func WithRefreshProgress(fn func(done, total int)) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// WithHNSW switches matching to an approximate index once the gallery has at
// least minSize entries, re-ranking the given number of candidates exactly.
func WithHNSW(minSize, candidates int) Option {
	return func(s *Service) {
		s.hnswEnabled = true
		s.hnswMinSize = minSize
		s.hnswCandidates = candidates
	}
}

// WithNotifier receives a notice for every new mark.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithClock overrides the time source used for frames without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
