package gallery

import (
	"github.com/okian/rollcall/pkg/logger"
)

const (
	defaultRefreshConcurrency = 4
	defaultIndexCandidates    = 16
)

// Option configures a Refresher.
type Option func(*Refresher)

// WithCache reuses embeddings of unchanged reference images.
func WithCache(c EmbeddingCache) Option {
	return func(r *Refresher) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithConcurrency bounds parallel extractions.
func WithConcurrency(n int) Option {
	return func(r *Refresher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger overrides the refresher logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHNSW attaches an approximate index to snapshots of at least minSize entries.
func WithHNSW(minSize, candidates int) Option {
	return func(r *Refresher) {
		if minSize > 0 {
			r.indexMinSize = minSize
		}
		if candidates > 0 {
			r.indexCandidates = candidates
		}
	}
}

// WithProgress reports (done, total) after every identity.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Refresher) {
		r.progress = fn
	}
}
