// Package service wires the recognition pipeline and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	framequeue "github.com/okian/rollcall/internal/adapters/mq/queue"
	workerpool "github.com/okian/rollcall/internal/adapters/mq/worker"
	"github.com/okian/rollcall/internal/adapters/roster"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/matcher"
	"github.com/okian/rollcall/internal/domain/types"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

// Notifier is told about every new attendance mark.
type Notifier interface {
	Publish(ctx context.Context, n types.MarkNotice)
}

// Service runs frames through detection, matching and the ledger, and
// serves gallery refreshes and reports.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	roster   roster.Roster
	images   gallery.ImageSource
	detector detect.Detector
	store    ledger.Store
	cache    gallery.EmbeddingCache

	// Core components
	gallery    *gallery.Gallery
	matcher    *matcher.Matcher
	ledger     *ledger.Ledger
	deduper    dedupe.Deduper
	frameQueue *framequeue.InMemoryQueue
	workerPool *workerpool.Pool
	notifiers  []Notifier

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	threshold          float64
	policy             ledger.Policy
	loc                *time.Location
	requireEnrollment  bool
	refreshConcurrency int
	refreshTimeout     time.Duration
	refreshOnStart     bool
	hnswEnabled        bool
	hnswMinSize        int
	hnswCandidates     int
	progress           func(done, total int)
	now                func() time.Time

	// State
	refreshMu   sync.Mutex
	lastRefresh types.RefreshResult
	started     bool
	cancel      context.CancelFunc

	logger logger.Logger
}

// New constructs a Service over its collaborators. Matching, marking and
// reporting work right away; asynchronous frame submission needs Start.
func New(r roster.Roster, images gallery.ImageSource, det detect.Detector, store ledger.Store, opts ...Option) *Service {
	s := &Service{
		roster:             r,
		images:             images,
		detector:           det,
		store:              store,
		gallery:            gallery.New(),
		workerCount:        runtime.NumCPU(),
		queueSize:          1_024,
		dedupeSize:         50_000,
		threshold:          matcher.DefaultThreshold,
		policy:             ledger.PolicyAudit,
		loc:                time.UTC,
		requireEnrollment:  true,
		refreshConcurrency: 4,
		refreshTimeout:     5 * time.Minute,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.matcher = matcher.New(s.threshold)
	s.ledger = ledger.New(store,
		ledger.WithPolicy(s.policy),
		ledger.WithLocation(s.loc),
		ledger.WithLogger(s.logger.Named("ledger")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start launches the frame workers and, when configured, the first refresh.
// A failed initial refresh is logged and leaves the empty gallery in place.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting attendance service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.frameQueue = framequeue.NewInMemoryQueue(framequeue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.frameQueue,
		workerpool.ProcessorFunc(s.processQueued),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.workerPool.Start(runCtx)
	s.started = true

	if s.refreshOnStart {
		if _, err := s.RefreshGallery(ctx); err != nil {
			s.logger.Error(ctx, "initial gallery refresh failed", logger.Error(err))
		}
	}

	s.logger.Info(ctx, "attendance service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("policy", string(s.policy)),
		logger.Float64("threshold", s.threshold),
	)
	return nil
}

// Stop drains queued frames and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping attendance service...")

	drainCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.workerPool.Shutdown(drainCtx)
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "attendance service stopped")
	return err
}

// Started reports whether Start has run.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Ledger exposes the attendance ledger.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// RefreshGallery rebuilds and publishes the gallery. Only one refresh runs at
// a time; a concurrent call fails with ErrRefreshInProgress. The refresh is
// detached from ctx cancellation and bounded by the refresh timeout instead,
// so an abandoned HTTP request does not waste a half-built snapshot.
func (s *Service) RefreshGallery(ctx context.Context) (types.RefreshResult, error) {
	if !s.refreshMu.TryLock() {
		return types.RefreshResult{}, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
	defer cancel()

	opts := []gallery.Option{
		gallery.WithConcurrency(s.refreshConcurrency),
		gallery.WithLogger(s.logger.Named("gallery")),
	}
	if s.cache != nil {
		opts = append(opts, gallery.WithCache(s.cache))
	}
	if s.hnswEnabled {
		opts = append(opts, gallery.WithHNSW(s.hnswMinSize, s.hnswCandidates))
	}
	if s.progress != nil {
		opts = append(opts, gallery.WithProgress(s.progress))
	}

	_, report, err := gallery.NewRefresher(s.gallery, s.roster, s.images, s.detector, opts...).Refresh(refreshCtx)
	if err != nil {
		metrics.RecordErrorByComponent("gallery", "refresh")
		return types.RefreshResult{}, err
	}

	res := refreshResult(report)
	s.mu.Lock()
	s.lastRefresh = res
	s.mu.Unlock()
	return res, nil
}

func refreshResult(r gallery.Report) types.RefreshResult {
	res := types.RefreshResult{
		Version:    r.Version,
		Total:      r.Total,
		Included:   r.Included,
		CacheHits:  r.CacheHits,
		DurationMS: r.Duration.Milliseconds(),
		Skipped:    make([]types.SkippedIdentity, len(r.Skipped)),
	}
	for i, sk := range r.Skipped {
		res.Skipped[i] = types.SkippedIdentity{IdentityID: sk.IdentityID, Reason: sk.Reason, Detail: sk.Detail}
	}
	return res
}

// Gallery describes the published snapshot.
func (s *Service) Gallery() types.GalleryInfo {
	snap := s.gallery.Snapshot()
	return types.GalleryInfo{
		Version:     snap.Version(),
		BuiltAt:     snap.BuiltAt(),
		Size:        snap.Len(),
		Dim:         snap.Dim(),
		Indexed:     snap.Index() != nil,
		IdentityIDs: snap.IDs(),
	}
}

// LastRefresh returns the result of the most recent successful refresh.
func (s *Service) LastRefresh() types.RefreshResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	snap := s.gallery.Snapshot()
	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dedupeSize":        s.dedupeSize,
		"policy":            string(s.policy),
		"threshold":         s.threshold,
		"requireEnrollment": s.requireEnrollment,
		"timezone":          s.loc.String(),
		"galleryVersion":    snap.Version(),
		"gallerySize":       snap.Len(),
		"seenFrames":        s.deduper.Size(),
	}
	if s.started {
		stats["queueLength"] = s.frameQueue.Len(ctx)
	}
	return stats
}

// SubmitFrame queues a frame for asynchronous processing. A frame id that was
// already submitted is acknowledged as a duplicate and not queued again.
func (s *Service) SubmitFrame(ctx context.Context, f framequeue.Frame) (types.SubmitResult, error) {
	s.mu.RLock()
	started, q := s.started, s.frameQueue
	s.mu.RUnlock()
	if !started {
		return types.SubmitResult{}, ErrNotStarted
	}

	f, err := s.normalizeFrame(f)
	if err != nil {
		return types.SubmitResult{}, err
	}

	if s.deduper.SeenAndRecord(ctx, f.ID) {
		metrics.RecordFrameDuplicate()
		return types.SubmitResult{FrameID: f.ID, Status: "duplicate", Duplicate: true}, nil
	}

	if err := q.Enqueue(ctx, f); err != nil {
		s.deduper.Unrecord(ctx, f.ID)
		switch {
		case errors.Is(err, framequeue.ErrFull):
			return types.SubmitResult{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		case errors.Is(err, framequeue.ErrClosed):
			return types.SubmitResult{}, fmt.Errorf("%w: %w", ErrNotStarted, err)
		default:
			return types.SubmitResult{}, err
		}
	}
	return types.SubmitResult{FrameID: f.ID, Status: "accepted"}, nil
}

// processQueued runs a queued frame. When it fails with a retryable error the
// frame id is forgotten so the client can resubmit the same frame.
func (s *Service) processQueued(ctx context.Context, f framequeue.Frame) error {
	_, err := s.ProcessFrame(ctx, f)
	if retryable(err) {
		s.deduper.Unrecord(ctx, f.ID)
		s.logger.Warn(ctx, "queued frame failed, frame id released for retry",
			logger.String("frame_id", f.ID),
			logger.Error(err),
		)
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, ledger.ErrLedgerWrite) || errors.Is(err, detect.ErrUnavailable)
}
