package repository

import (
	"context"
	"sync"

	"github.com/okian/rollcall/internal/domain/model"
)

type cachedEmbedding struct {
	digest string
	emb    model.Embedding
}

// MemoryCache keeps the latest reference embedding per identity.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]cachedEmbedding
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]cachedEmbedding)}
}

// Get returns the embedding cached for identityID when digest still matches.
func (c *MemoryCache) Get(_ context.Context, identityID, digest string) (model.Embedding, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[identityID]
	if !ok || e.digest != digest {
		return nil, false, nil
	}
	return e.emb.Clone(), true, nil
}

// Put replaces the cached embedding of identityID.
func (c *MemoryCache) Put(_ context.Context, identityID, digest string, emb model.Embedding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[identityID] = cachedEmbedding{digest: digest, emb: emb.Clone()}
	return nil
}

// Len returns the number of cached identities.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
