// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// Store is a collection of chunks in a Badger backend.
type Store struct {
	backend     *Backend
	collection  string
	ownsBackend bool
	logger      *slog.Logger
}

var _ storage.Store = (*Store)(nil)

func newStore(backend *Backend, collection string, ownsBackend bool) (*Store, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	return &Store{
		backend:     backend,
		collection:  collection,
		ownsBackend: ownsBackend,
		logger:      slog.Default().With("component", "badger-store", "collection", collection),
	}, nil
}

// NewStore creates a store for collection on an already open backend.
// Closing the store leaves the backend open.
func NewStore(backend *Backend, collection string) (storage.Store, error) {
	return newStore(backend, collection, false)
}

// Open opens the Badger directory at path and returns a store for collection.
// Closing the store closes the directory.
func Open(path, collection string) (storage.Store, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	store, err := newStore(backend, collection, true)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// checkCollection rejects names containing the key separator, which would
// let one collection's prefix match another's keys.
func checkCollection(collection string) error {
	if collection == "" {
		return storage.ErrCollectionRequired
	}
	if strings.Contains(collection, keySeparator) {
		return fmt.Errorf("%w: %q contains %q", storage.ErrInvalidCollection, collection, keySeparator)
	}
	return nil
}

func (s *Store) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Upsert writes all chunks of the batch in a single transaction.
// Vectors are normalized before they are stored.
func (s *Store) Upsert(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := core.ValidateBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i, chunk := range chunks {
			record, err := storage.NewChunkRecord(chunk, NormalizeVector(vectors[i]))
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(s.collection, chunk.ID), storage.MarshalChunkRecord(record)); err != nil {
				return fmt.Errorf("failed to write chunk %s: %w", chunk.ID, err)
			}
		}
		s.logger.Debug("upserted chunks", "count", len(chunks))
		return tx.Commit()
	}, true)
}

// SimilaritySearch scans the collection and ranks chunks by cosine similarity.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}

	query := NormalizeVector(vector)
	results := []*core.SearchResult{}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(s.collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.ChunkRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalChunkRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(record.Vector) == 0 {
				continue
			}

			chunk, err := storage.ChunkFromRecord(record)
			if err != nil {
				return err
			}
			results = append(results, &core.SearchResult{
				Chunk: chunk,
				Score: dotProduct(query, record.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending; ties keep key order
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteExcept removes chunks of this collection whose IDs are not in keep.
func (s *Store) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	var stale [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(s.collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			if _, ok := keepSet[chunkIDFromKey(s.collection, key)]; !ok {
				stale = append(stale, key)
			}
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("deleted stale chunks", "count", len(stale))
	return len(stale), nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(s.collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// SaveManifest replaces the collection's manifest.
func (s *Store) SaveManifest(ctx context.Context, manifest *core.Manifest) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		value := storage.MarshalManifestRecord(storage.NewManifestRecord(manifest))
		if err := tx.Set(makeManifestKey(s.collection), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadManifest returns the collection's manifest, or nil if none was saved.
func (s *Store) LoadManifest(ctx context.Context) (*core.Manifest, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var manifest *core.Manifest
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeManifestKey(s.collection))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			record, err := storage.UnmarshalManifestRecord(val)
			if err != nil {
				return err
			}
			manifest = storage.ManifestFromRecord(record)
			return nil
		})
	}, false)
	return manifest, err
}

// Close closes the backend if this store opened it.
func (s *Store) Close() error {
	if !s.ownsBackend || s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}
