// Package mock provides an in-memory storage.Store for testing.
//
// MockStore records every call so tests can assert on the exact batches an
// ingestion sent, and exposes Func fields to inject failures.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// UpsertCall captures the arguments of a single Upsert.
type UpsertCall struct {
	IDs     []string
	Vectors [][]float32
}

// MockStore is a test double for storage.Store.
// Search returns stored chunks in ID order, scored by dot product.
type MockStore struct {
	// UpsertFunc is called by Upsert if set. When it fails nothing is stored
	// or recorded.
	UpsertFunc func(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error

	// SearchFunc is called by SimilaritySearch if set.
	SearchFunc func(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error)

	mu          sync.Mutex
	chunks      map[string]*core.Chunk
	vectors     map[string][]float32
	manifest    *core.Manifest
	upserts     []UpsertCall
	searchCalls int
	deleteCalls int
	closed      bool
}

var _ storage.Store = (*MockStore)(nil)

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		chunks:  make(map[string]*core.Chunk),
		vectors: make(map[string][]float32),
	}
}

// Upsert records the call and stores the chunks unless UpsertFunc fails.
func (m *MockStore) Upsert(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, chunks, vectors); err != nil {
			return err
		}
	}

	call := UpsertCall{IDs: make([]string, len(chunks)), Vectors: vectors}
	for i, c := range chunks {
		call.IDs[i] = c.ID
		m.chunks[c.ID] = c
		m.vectors[c.ID] = vectors[i]
	}
	m.upserts = append(m.upserts, call)
	return nil
}

// SimilaritySearch returns up to k stored chunks.
func (m *MockStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.searchCalls++
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, vector, k)
	}

	results := make([]*core.SearchResult, 0, len(m.chunks))
	for id, c := range m.chunks {
		results = append(results, &core.SearchResult{Chunk: c, Score: dot(vector, m.vectors[id])})
	}
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		ai, _ := core.ChunkIndex(a.Chunk.ID)
		bi, _ := core.ChunkIndex(b.Chunk.ID)
		return ai - bi
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteExcept removes chunks not listed in keep.
func (m *MockStore) DeleteExcept(_ context.Context, keep []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls++
	removed := 0
	for id := range m.chunks {
		if !slices.Contains(keep, id) {
			delete(m.chunks, id)
			delete(m.vectors, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored chunks.
func (m *MockStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), nil
}

// SaveManifest stores the manifest.
func (m *MockStore) SaveManifest(_ context.Context, manifest *core.Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest = manifest
	return nil
}

// LoadManifest returns the stored manifest, or nil.
func (m *MockStore) LoadManifest(context.Context) (*core.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest, nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Upserts returns every recorded Upsert call in order.
func (m *MockStore) Upserts() []UpsertCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.upserts)
}

// CallCount returns the total number of store calls that touch data.
func (m *MockStore) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.upserts) + m.searchCalls + m.deleteCalls
	if m.manifest != nil {
		n++
	}
	return n
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset clears stored data, recorded calls and injected behavior.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]*core.Chunk)
	m.vectors = make(map[string][]float32)
	m.manifest = nil
	m.upserts = nil
	m.searchCalls = 0
	m.deleteCalls = 0
	m.UpsertFunc = nil
	m.SearchFunc = nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := 0; i < min(len(a), len(b)); i++ {
		sum += a[i] * b[i]
	}
	return sum
}
