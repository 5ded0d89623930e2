// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) builds a Config with defaults; Load(ctx) layers file and env on top.
//   - Nested sections map to dotted koanf keys (ledger.policy, gallery.index_kind).
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Timezone names the IANA location used to derive attendance days.
	Timezone string `koanf:"timezone" validate:"required"`

	// MatchThreshold is the maximum euclidean distance (exclusive) for a match.
	MatchThreshold float64 `koanf:"match_threshold" validate:"gt=0"`

	// RequireEnrollment rejects marks for identities not enrolled in the course.
	RequireEnrollment bool `koanf:"require_enrollment"`

	// QueueSize bounds the in-memory frame queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of frame workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize bounds the frame id cache. Zero or negative means unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxFrameBytes caps uploaded frame size.
	MaxFrameBytes int64 `koanf:"max_frame_bytes" validate:"gt=0"`

	Gallery  GalleryConfig  `koanf:"gallery"`
	Detector DetectorConfig `koanf:"detector"`
	Roster   RosterConfig   `koanf:"roster"`
	Images   ImagesConfig   `koanf:"images"`
	Ledger   LedgerConfig   `koanf:"ledger"`
}

// GalleryConfig tunes the embedding gallery and its refresh.
type GalleryConfig struct {
	// IndexKind is linear (exact scan, the default) or hnsw. With hnsw, a
	// unique candidate well inside the threshold is trusted as found by the
	// index; ties and near-threshold distances are re-checked with a full scan.
	IndexKind          string        `koanf:"index_kind" validate:"oneof=linear hnsw"`
	HNSWMinSize        int           `koanf:"hnsw_min_size" validate:"gte=0"`
	HNSWCandidates     int           `koanf:"hnsw_candidates" validate:"gt=0"`
	RefreshConcurrency int           `koanf:"refresh_concurrency" validate:"gt=0"`
	RefreshTimeout     time.Duration `koanf:"refresh_timeout" validate:"gt=0"`
	RefreshOnStart     bool          `koanf:"refresh_on_start"`
	Cache              CacheConfig   `koanf:"cache"`
}

// CacheConfig selects where reference embeddings are cached between refreshes.
type CacheConfig struct {
	Kind string `koanf:"kind" validate:"oneof=none memory postgres"`
	DSN  string `koanf:"dsn" validate:"required_if=Kind postgres"`
}

// DetectorConfig selects and configures the face detector/embedder.
type DetectorConfig struct {
	Kind          string        `koanf:"kind" validate:"oneof=embedserver opencv"`
	URL           string        `koanf:"url" validate:"required_if=Kind embedserver"`
	Model         string        `koanf:"model"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxSide       int           `koanf:"max_side" validate:"gte=0"`
	FaceModel     string        `koanf:"face_model" validate:"required_if=Kind opencv"`
	FaceConfig    string        `koanf:"face_config" validate:"required_if=Kind opencv"`
	EmbedModel    string        `koanf:"embed_model" validate:"required_if=Kind opencv"`
	MinConfidence float64       `koanf:"min_confidence" validate:"gte=0,lte=1"`
}

// RosterConfig selects the roster collaborator.
type RosterConfig struct {
	Kind   string `koanf:"kind" validate:"oneof=file sql"`
	Path   string `koanf:"path" validate:"required_if=Kind file"`
	Driver string `koanf:"driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required_if=Kind sql"`
}

// ImagesConfig selects the reference-image collaborator.
type ImagesConfig struct {
	Kind     string        `koanf:"kind" validate:"oneof=dir http s3"`
	Dir      string        `koanf:"dir" validate:"required_if=Kind dir"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Bucket   string        `koanf:"bucket" validate:"required_if=Kind s3"`
	Region   string        `koanf:"region"`
	Prefix   string        `koanf:"prefix"`
	Endpoint string        `koanf:"endpoint"`
	// AccessKey and SecretKey fall back to the AWS default chain when empty.
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// LedgerConfig selects the ledger store and its idempotency policy.
type LedgerConfig struct {
	Kind   string `koanf:"kind" validate:"oneof=memory sql"`
	Policy string `koanf:"policy" validate:"oneof=audit upsert"`
	Driver string `koanf:"driver" validate:"omitempty,oneof=postgres sqlite mysql"`
	DSN    string `koanf:"dsn" validate:"required_if=Kind sql"`
}

// New creates a Config populated with defaults. The context is accepted
// first to follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		Timezone:          "UTC",
		MatchThreshold:    0.6,
		RequireEnrollment: true,
		QueueSize:         1_024,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		MaxFrameBytes:     8 << 20,
		Gallery: GalleryConfig{
			IndexKind:          "linear",
			HNSWMinSize:        2_000,
			HNSWCandidates:     16,
			RefreshConcurrency: 4,
			RefreshTimeout:     5 * time.Minute,
			RefreshOnStart:     true,
			Cache:              CacheConfig{Kind: "memory"},
		},
		Detector: DetectorConfig{
			Kind:          "embedserver",
			URL:           "http://localhost:8000",
			Model:         "buffalo_l",
			Timeout:       30 * time.Second,
			MaxSide:       1_280,
			MinConfidence: 0.5,
		},
		Roster: RosterConfig{
			Kind:   "file",
			Path:   "roster.yaml",
			Driver: "sqlite",
		},
		Images: ImagesConfig{
			Kind:    "dir",
			Dir:     "faces",
			Timeout: 15 * time.Second,
			Region:  "us-east-1",
		},
		Ledger: LedgerConfig{
			Kind:   "memory",
			Policy: "audit",
			Driver: "sqlite",
		},
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
