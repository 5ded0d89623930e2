// Package repository implements ledger stores and reference-embedding caches.
//
// MemoryStore and MemoryCache keep everything in process. SQLStore persists
// the ledger through database/sql on postgres, sqlite or mysql, and
// PGVectorCache keeps reference embeddings in a pgvector column.
package repository

import (
	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/ledger"
)

var (
	_ ledger.Store           = (*MemoryStore)(nil)
	_ ledger.Store           = (*SQLStore)(nil)
	_ gallery.EmbeddingCache = (*MemoryCache)(nil)
	_ gallery.EmbeddingCache = (*PGVectorCache)(nil)
)
