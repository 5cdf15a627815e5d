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

package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// Store is a named collection in a PostgreSQL database with the vector
// extension.
type Store struct {
	pool         *pgxpool.Pool
	collection   string
	collectionID string
	closed       atomic.Bool
	logger       *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures the connection pool.
type Option func(*pgxpool.Config)

// WithMaxConns limits the number of pooled connections.
func WithMaxConns(n int32) Option {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// Open connects to url, creates the schema if needed and ensures collection
// exists.
func Open(ctx context.Context, url, collection string, opts ...Option) (*Store, error) {
	if url == "" {
		return nil, storage.ErrConnectionRequired
	}
	if collection == "" {
		return nil, storage.ErrCollectionRequired
	}

	// Types can only be registered once the extension exists
	if err := ensureSchema(ctx, url); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wrapError("connect", err)
	}

	s := &Store{
		pool:       pool,
		collection: collection,
		logger:     slog.Default().With("component", "pgvector-store", "collection", collection),
	}
	if err := s.ensureCollection(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func ensureSchema(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return wrapError("connect", err)
	}
	defer conn.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return wrapError("create schema", err)
		}
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, insertCollectionSQL, uuid.NewString(), s.collection); err != nil {
		return wrapError("create collection", err)
	}
	if err := s.pool.QueryRow(ctx, selectCollectionSQL, s.collection).Scan(&s.collectionID); err != nil {
		return wrapError("load collection", err)
	}
	s.logger.Debug("collection ready", "id", s.collectionID)
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Upsert writes the batch in one transaction. Existing IDs are overwritten.
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

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		metadata, err := storage.MarshalMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(upsertEmbeddingSQL,
			chunk.ID, s.collectionID, pgv.NewVector(vectors[i]), chunk.Content, string(metadata))
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range chunks {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return err
			}
		}
		return results.Close()
	})
	if err != nil {
		return wrapError("upsert", err)
	}
	s.logger.Debug("upserted chunks", "count", len(chunks))
	return nil
}

// SimilaritySearch ranks chunks by cosine distance. Scores are reported as
// 1 - distance so that higher means more similar.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}

	rows, err := s.pool.Query(ctx, similaritySearchSQL, pgv.NewVector(vector), s.collection, k)
	if err != nil {
		if isUndefinedTable(err) {
			return []*core.SearchResult{}, nil
		}
		return nil, wrapError("search", err)
	}
	defer rows.Close()

	results := []*core.SearchResult{}
	for rows.Next() {
		var (
			id, content string
			rawMetadata []byte
			distance    float64
		)
		if err := rows.Scan(&id, &content, &rawMetadata, &distance); err != nil {
			return nil, wrapError("search", err)
		}
		metadata, err := storage.UnmarshalMetadata(rawMetadata)
		if err != nil {
			return nil, err
		}
		results = append(results, &core.SearchResult{
			Chunk: &core.Chunk{ID: id, Content: content, Metadata: metadata},
			Score: scoreFromDistance(distance),
		})
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return []*core.SearchResult{}, nil
		}
		return nil, wrapError("search", err)
	}
	return results, nil
}

// DeleteExcept removes chunks of this collection whose IDs are not in keep.
func (s *Store) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if keep == nil {
		keep = []string{}
	}

	tag, err := s.pool.Exec(ctx, deleteExceptSQL, s.collection, keep)
	if err != nil {
		return 0, wrapError("delete stale chunks", err)
	}
	removed := int(tag.RowsAffected())
	if removed > 0 {
		s.logger.Debug("deleted stale chunks", "count", removed)
	}
	return removed, nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	if err := s.pool.QueryRow(ctx, countSQL, s.collection).Scan(&count); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, wrapError("count", err)
	}
	return int(count), nil
}

// manifestDocument is the JSON form of core.Manifest kept in the collection
// metadata.
type manifestDocument struct {
	Source         string    `json:"source"`
	Fingerprint    string    `json:"fingerprint"`
	Chunks         int       `json:"chunks"`
	EmbeddingModel string    `json:"embedding_model"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// SaveManifest stores manifest under the collection metadata, leaving other
// metadata keys untouched.
func (s *Store) SaveManifest(ctx context.Context, manifest *core.Manifest) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	doc, err := json.Marshal(manifestDocument{
		Source:         manifest.Source,
		Fingerprint:    manifest.Fingerprint,
		Chunks:         manifest.Chunks,
		EmbeddingModel: manifest.EmbeddingModel,
		IngestedAt:     manifest.IngestedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: manifest: %w", storage.ErrSerializationFailed, err)
	}

	if _, err := s.pool.Exec(ctx, saveManifestSQL, s.collection, string(doc)); err != nil {
		return wrapError("save manifest", err)
	}
	return nil
}

// LoadManifest returns the collection's manifest, or nil if none was saved.
func (s *Store) LoadManifest(ctx context.Context) (*core.Manifest, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, loadManifestSQL, s.collection).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, nil
		}
		return nil, wrapError("load manifest", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var doc manifestDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", storage.ErrSerializationFailed, err)
	}
	return &core.Manifest{
		Source:         doc.Source,
		Fingerprint:    doc.Fingerprint,
		Chunks:         doc.Chunks,
		EmbeddingModel: doc.EmbeddingModel,
		IngestedAt:     doc.IngestedAt.UTC(),
	}, nil
}

// Close closes the connection pool. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}

func scoreFromDistance(distance float64) float32 {
	return float32(1 - distance)
}
