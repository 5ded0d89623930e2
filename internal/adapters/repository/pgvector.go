package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// PGVectorCache stores reference embeddings in Postgres, one row per identity.
type PGVectorCache struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenPGVectorCache connects to dsn and creates the cache table.
func OpenPGVectorCache(ctx context.Context, dsn string, opts ...Option) (*PGVectorCache, error) {
	o := defaultSQLOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("embedding-cache")
	}
	d := dialects["postgres"]

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxIdleConns)
	db.SetConnMaxLifetime(o.connLifetime)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if o.migrate {
		if err := migrateUp(db, d, "migrations/cache", cacheMigrationsTable); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &PGVectorCache{db: db, logger: o.logger}, nil
}

// Get returns the cached embedding of identityID when its digest matches.
func (c *PGVectorCache) Get(ctx context.Context, identityID, digest string) (model.Embedding, bool, error) {
	var vec pgvector.Vector
	err := c.db.QueryRowContext(ctx,
		`SELECT embedding FROM reference_embeddings WHERE identity_id = $1 AND digest = $2`,
		identityID, digest,
	).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query embedding: %w", err)
	}
	return model.Embedding(vec.Slice()), true, nil
}

// Put upserts the embedding of identityID.
func (c *PGVectorCache) Put(ctx context.Context, identityID, digest string, emb model.Embedding) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO reference_embeddings (identity_id, digest, embedding, dim, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (identity_id) DO UPDATE SET
			digest = EXCLUDED.digest,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			updated_at = NOW()`,
		identityID, digest, pgvector.NewVector([]float32(emb)), emb.Dim(),
	)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Count returns the number of cached identities.
func (c *PGVectorCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// Close closes the pool.
func (c *PGVectorCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}
