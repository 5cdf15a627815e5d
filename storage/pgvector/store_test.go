package pgvector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresArguments(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "", "docs")
	assert.ErrorIs(t, err, storage.ErrConnectionRequired)

	_, err = Open(ctx, "postgres://localhost/db", "")
	assert.ErrorIs(t, err, storage.ErrCollectionRequired)
}

func TestWrapError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, wrapError("op", nil))
	})

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("upsert", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.transient, storage.IsTransient(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "pgvector upsert")
		})
	}
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, isUndefinedTable(fmt.Errorf("query: %w", &pgconn.PgError{Code: "42P01"})))
	assert.False(t, isUndefinedTable(&pgconn.PgError{Code: "42703"}))
	assert.False(t, isUndefinedTable(errors.New("42P01")))
}

func TestScoreFromDistance(t *testing.T) {
	assert.InDelta(t, 1.0, scoreFromDistance(0), 1e-6)
	assert.InDelta(t, 0.0, scoreFromDistance(1), 1e-6)
	assert.InDelta(t, -1.0, scoreFromDistance(2), 1e-6)
	assert.Greater(t, scoreFromDistance(0.1), scoreFromDistance(0.4))
}

// openIntegrationStore connects to the database named by
// DOCRAG_TEST_PGVECTOR_URL using a collection unique to the test.
func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DOCRAG_TEST_PGVECTOR_URL")
	if url == "" {
		t.Skip("DOCRAG_TEST_PGVECTOR_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, url, "docrag_test_"+uuid.NewString(), WithMaxConns(4))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.DeleteExcept(ctx, nil)
		store.pool.Exec(ctx, `DELETE FROM `+collectionTable+` WHERE name = $1`, store.collection)
		store.Close()
	})
	return store
}

func testChunks(n int) []*core.Chunk {
	out := make([]*core.Chunk, n)
	for i := range out {
		out[i] = &core.Chunk{
			ID:       core.ChunkID(i),
			Content:  fmt.Sprintf("chunk %d", i),
			Metadata: map[string]any{"source": "document.pdf", "page": i + 1},
		}
	}
	return out
}

func TestStore_Integration(t *testing.T) {
	store := openIntegrationStore(t)
	ctx := context.Background()

	vectors := [][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 0, 1}}
	require.NoError(t, store.Upsert(ctx, testChunks(3), vectors))
	// Repeating the batch overwrites instead of duplicating
	require.NoError(t, store.Upsert(ctx, testChunks(3), vectors))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-0", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Equal(t, "doc-1", results[1].Chunk.ID)
	assert.Equal(t, "document.pdf", results[0].Chunk.Metadata["source"])
	assert.Equal(t, float64(1), results[0].Chunk.Metadata["page"])

	removed, err := store.DeleteExcept(ctx, []string{"doc-0"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	manifest, err := store.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Nil(t, manifest)

	saved := &core.Manifest{
		Source:         "document.pdf",
		Fingerprint:    core.Fingerprint([]byte("pdf")),
		Chunks:         1,
		EmbeddingModel: "models/gemini-embedding-001",
		IngestedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.SaveManifest(ctx, saved))

	loaded, err := store.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}
