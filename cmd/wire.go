package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/okian/rollcall/internal/adapters/detector/embedserver"
	"github.com/okian/rollcall/internal/adapters/detector/opencv"
	"github.com/okian/rollcall/internal/adapters/imagestore"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/roster"
	app "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/pkg/logger"
)

// components holds the collaborators built from configuration and the
// resources to release on exit.
type components struct {
	roster   roster.Roster
	images   imagestore.Store
	detector detect.Detector
	store    ledger.Store
	cache    gallery.EmbeddingCache
	closers  []io.Closer
}

// Close releases every opened resource, in reverse order.
func (c *components) Close() error {
	var result *multierror.Error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// build opens every collaborator named by cfg. On failure the resources
// opened so far are closed.
func build(ctx context.Context, cfg *config.Config) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.roster, err = buildRoster(cfg.Roster, c); err != nil {
		return nil, err
	}
	if c.images, err = buildImages(cfg.Images); err != nil {
		return nil, err
	}
	if c.detector, err = buildDetector(cfg.Detector, c); err != nil {
		return nil, err
	}
	if c.store, err = buildStore(ctx, cfg.Ledger, c); err != nil {
		return nil, err
	}
	if c.cache, err = buildCache(ctx, cfg.Gallery.Cache, c); err != nil {
		return nil, err
	}
	return c, nil
}

func buildRoster(cfg config.RosterConfig, c *components) (roster.Roster, error) {
	switch cfg.Kind {
	case "sql":
		db, err := roster.OpenDB(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open roster: %w", err)
		}
		c.closers = append(c.closers, db)
		return db, nil
	default:
		return roster.NewFile(cfg.Path), nil
	}
}

func buildImages(cfg config.ImagesConfig) (imagestore.Store, error) {
	switch cfg.Kind {
	case "http":
		return imagestore.NewHTTP(cfg.BaseURL, cfg.Timeout), nil
	case "s3":
		s, err := imagestore.NewS3(imagestore.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open image bucket: %w", err)
		}
		return s, nil
	default:
		return imagestore.NewDir(cfg.Dir), nil
	}
}

func buildDetector(cfg config.DetectorConfig, c *components) (detect.Detector, error) {
	switch cfg.Kind {
	case "opencv":
		d, err := opencv.New(cfg.FaceModel, cfg.FaceConfig, cfg.EmbedModel, opencv.WithMinScore(cfg.MinConfidence))
		if err != nil {
			return nil, fmt.Errorf("load opencv detector: %w", err)
		}
		c.closers = append(c.closers, d)
		return d, nil
	default:
		return embedserver.New(cfg.URL,
			embedserver.WithModel(cfg.Model),
			embedserver.WithTimeout(cfg.Timeout),
			embedserver.WithMaxSide(cfg.MaxSide),
			embedserver.WithMinScore(cfg.MinConfidence),
		), nil
	}
}

func buildStore(ctx context.Context, cfg config.LedgerConfig, c *components) (ledger.Store, error) {
	switch cfg.Kind {
	case "sql":
		s, err := repository.OpenSQLStore(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open ledger store: %w", err)
		}
		c.closers = append(c.closers, s)
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func buildCache(ctx context.Context, cfg config.CacheConfig, c *components) (gallery.EmbeddingCache, error) {
	switch cfg.Kind {
	case "postgres":
		pc, err := repository.OpenPGVectorCache(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		c.closers = append(c.closers, pc)
		return pc, nil
	case "memory":
		return repository.NewMemoryCache(), nil
	default:
		return nil, nil
	}
}

// newService builds the attendance service over c with cfg's tuning.
func newService(cfg *config.Config, c *components, extra ...app.Option) (*app.Service, error) {
	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		return nil, err
	}
	opts := []app.Option{
		app.WithLogger(logger.Get().Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithThreshold(cfg.MatchThreshold),
		app.WithPolicy(policy),
		app.WithLocation(cfg.Location()),
		app.WithRequireEnrollment(cfg.RequireEnrollment),
		app.WithRefreshConcurrency(cfg.Gallery.RefreshConcurrency),
		app.WithRefreshTimeout(cfg.Gallery.RefreshTimeout),
		app.WithRefreshOnStart(cfg.Gallery.RefreshOnStart),
	}
	if c.cache != nil {
		opts = append(opts, app.WithEmbeddingCache(c.cache))
	}
	if cfg.Gallery.IndexKind == "hnsw" {
		opts = append(opts, app.WithHNSW(cfg.Gallery.HNSWMinSize, cfg.Gallery.HNSWCandidates))
	}
	opts = append(opts, extra...)
	return app.New(c.roster, c.images, c.detector, c.store, opts...), nil
}
