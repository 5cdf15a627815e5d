package storage

import (
	"context"

	"github.com/poiesic/docrag/core"
)

// VectorStore persists document chunks together with their embedding vectors
// and answers nearest-neighbour queries over them.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Upsert inserts chunks paired 1:1 with vectors.
	// A chunk whose ID already exists replaces the stored chunk, so repeating
	// an upsert with the same IDs never duplicates records.
	Upsert(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error

	// SimilaritySearch returns up to k chunks most similar to vector,
	// ordered by similarity (most similar first).
	// A missing or empty collection yields an empty slice and no error.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error)

	// DeleteExcept removes every chunk whose ID is not in keep.
	// Returns the number of chunks removed.
	DeleteExcept(ctx context.Context, keep []string) (int, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// ManifestRepository records metadata about the last successful ingestion.
type ManifestRepository interface {
	// SaveManifest replaces the stored manifest.
	SaveManifest(ctx context.Context, manifest *core.Manifest) error

	// LoadManifest returns the stored manifest, or nil if none was saved.
	LoadManifest(ctx context.Context) (*core.Manifest, error)
}

// Store combines vector storage with ingestion bookkeeping.
type Store interface {
	VectorStore
	ManifestRepository
}
