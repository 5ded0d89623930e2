package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// RosterSource lists every identity that should be in the gallery.
type RosterSource interface {
	All(ctx context.Context) ([]model.Identity, error)
}

// ImageSource fetches the reference image of an identity. A missing image
// must be reported with an error wrapping ErrImageNotFound.
type ImageSource interface {
	Fetch(ctx context.Context, identity model.Identity) ([]byte, error)
}

// EmbeddingCache stores reference embeddings keyed by identity and image digest.
type EmbeddingCache interface {
	Get(ctx context.Context, identityID, digest string) (model.Embedding, bool, error)
	Put(ctx context.Context, identityID, digest string, emb model.Embedding) error
}

// Skip records an identity left out of a snapshot.
type Skip struct {
	IdentityID string `json:"identity_id"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// Report summarises one refresh.
type Report struct {
	Version   uint64        `json:"version"`
	Total     int           `json:"total"`
	Included  int           `json:"included"`
	Skipped   []Skip        `json:"skipped"`
	CacheHits int           `json:"cache_hits"`
	Duration  time.Duration `json:"duration"`
}

// Refresher rebuilds the gallery from the roster, the image store and the detector.
type Refresher struct {
	gallery  *Gallery
	roster   RosterSource
	images   ImageSource
	detector detect.Detector
	cache    EmbeddingCache

	concurrency     int
	indexMinSize    int
	indexCandidates int
	progress        func(done, total int)

	logger logger.Logger
}

// NewRefresher wires a refresher publishing into g.
func NewRefresher(g *Gallery, roster RosterSource, images ImageSource, det detect.Detector, opts ...Option) *Refresher {
	r := &Refresher{
		gallery:         g,
		roster:          roster,
		images:          images,
		detector:        det,
		concurrency:     defaultRefreshConcurrency,
		indexCandidates: defaultIndexCandidates,
		logger:          logger.Get().Named("gallery"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// outcome is the per-identity result of an extraction.
type outcome struct {
	identity model.Identity
	emb      model.Embedding
	skip     *Skip
	cacheHit bool
	fatal    error
}

// Refresh builds a complete snapshot and publishes it. On error the
// previously published snapshot is left untouched.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, Report, error) {
	start := time.Now()
	fail := func(err error) (*Snapshot, Report, error) {
		metrics.RecordGalleryRefresh("failed", float64(time.Since(start).Milliseconds()))
		r.logger.Error(ctx, "gallery refresh failed", logger.Error(err))
		return nil, Report{}, err
	}

	identities, err := r.roster.All(ctx)
	if err != nil {
		return fail(fmt.Errorf("%w: roster: %w", ErrRefresh, err))
	}

	outcomes := r.extractAll(ctx, identities)

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrRefresh, err))
	}
	var merr *multierror.Error
	for _, o := range outcomes {
		if o.fatal != nil && !errors.Is(o.fatal, context.Canceled) {
			merr = multierror.Append(merr, o.fatal)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrRefresh, err))
	}

	report := Report{Total: len(identities), Skipped: []Skip{}}
	entries := make([]Entry, 0, len(outcomes))
	seen := make(map[string]struct{}, len(outcomes))
	dim := 0
	for _, o := range outcomes {
		if o.cacheHit {
			report.CacheHits++
		}
		skip := o.skip
		if skip == nil {
			if _, dup := seen[o.identity.ID]; dup {
				skip = &Skip{IdentityID: o.identity.ID, Reason: SkipDuplicate}
			} else if dim != 0 && o.emb.Dim() != dim {
				skip = &Skip{
					IdentityID: o.identity.ID,
					Reason:     SkipDimensionMismatch,
					Detail:     fmt.Sprintf("dimension %d, gallery uses %d", o.emb.Dim(), dim),
				}
			}
		}
		if skip != nil {
			r.logger.Warn(ctx, "identity excluded from gallery",
				logger.String("identity_id", skip.IdentityID),
				logger.String("reason", skip.Reason),
				logger.String("detail", skip.Detail),
			)
			report.Skipped = append(report.Skipped, *skip)
			continue
		}
		if dim == 0 {
			dim = o.emb.Dim()
		}
		seen[o.identity.ID] = struct{}{}
		entries = append(entries, Entry{IdentityID: o.identity.ID, Name: o.identity.Name, Embedding: o.emb})
	}

	var popts []PublishOption
	if r.indexMinSize > 0 {
		popts = append(popts, WithIndex(r.indexMinSize, r.indexCandidates))
	}
	snap := r.gallery.Publish(entries, popts...)

	report.Version = snap.Version()
	report.Included = snap.Len()
	report.Duration = time.Since(start)

	metrics.UpdateGallery(snap.Len(), snap.Version(), len(report.Skipped))
	metrics.RecordGalleryRefresh("success", float64(report.Duration.Milliseconds()))
	r.logger.Info(ctx, "gallery refreshed",
		logger.Int64("version", int64(snap.Version())),
		logger.Int("included", report.Included),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("cache_hits", report.CacheHits),
		logger.Duration("took", report.Duration),
	)
	return snap, report, nil
}

// extractAll runs extractions with bounded concurrency. Outcomes keep roster order.
func (r *Refresher) extractAll(ctx context.Context, identities []model.Identity) []outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]outcome, len(identities))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	var done atomic.Int64

loop:
	for i, id := range identities {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(identities); j++ {
				outcomes[j] = outcome{identity: identities[j], fatal: ctx.Err()}
			}
			break loop
		}
		wg.Add(1)
		go func(i int, id model.Identity) {
			defer wg.Done()
			defer func() { <-sem }()

			o := r.extract(ctx, id)
			outcomes[i] = o
			if o.fatal != nil {
				cancel()
			}
			if r.progress != nil {
				r.progress(int(done.Add(1)), len(identities))
			}
		}(i, id)
	}
	wg.Wait()
	return outcomes
}

// extract produces the reference embedding of one identity. The image bytes
// do not outlive the call.
func (r *Refresher) extract(ctx context.Context, identity model.Identity) outcome {
	identity = identity.Normalized()
	o := outcome{identity: identity}
	if identity.ID == "" {
		o.skip = &Skip{IdentityID: identity.ID, Reason: SkipInvalidID}
		return o
	}

	img, err := r.images.Fetch(ctx, identity)
	switch {
	case errors.Is(err, ErrImageNotFound):
		o.skip = &Skip{IdentityID: identity.ID, Reason: SkipNoImage}
		return o
	case errors.Is(err, ErrInvalidImage):
		o.skip = &Skip{IdentityID: identity.ID, Reason: SkipInvalidRef, Detail: err.Error()}
		return o
	case err != nil:
		o.fatal = fmt.Errorf("image for %s: %w", identity.ID, err)
		return o
	}

	sum := sha256.Sum256(img)
	digest := hex.EncodeToString(sum[:])
	if r.cache != nil {
		emb, ok, err := r.cache.Get(ctx, identity.ID, digest)
		switch {
		case err != nil:
			r.logger.Warn(ctx, "embedding cache read failed",
				logger.String("identity_id", identity.ID), logger.Error(err))
		case ok && emb.Dim() > 0:
			metrics.RecordGalleryCacheHit()
			o.emb = emb
			o.cacheHit = true
			return o
		}
		metrics.RecordGalleryCacheMiss()
	}

	dets, err := r.detector.DetectFaces(ctx, img)
	switch {
	case err != nil && (detect.IsUnavailable(err) || ctx.Err() != nil):
		o.fatal = fmt.Errorf("detector for %s: %w", identity.ID, err)
		return o
	case err != nil:
		o.skip = &Skip{IdentityID: identity.ID, Reason: SkipDetectionFailed, Detail: err.Error()}
		return o
	}
	best, ok := detect.Best(dets)
	if !ok || best.Embedding.Dim() == 0 {
		o.skip = &Skip{IdentityID: identity.ID, Reason: SkipNoFace}
		return o
	}
	o.emb = best.Embedding.Clone()

	if r.cache != nil {
		if err := r.cache.Put(ctx, identity.ID, digest, o.emb); err != nil {
			r.logger.Warn(ctx, "embedding cache write failed",
				logger.String("identity_id", identity.ID), logger.Error(err))
		}
	}
	return o
}
