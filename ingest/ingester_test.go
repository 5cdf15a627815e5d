package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docrag/ai"
	aimock "github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/document"
	"github.com/poiesic/docrag/storage"
	storagemock "github.com/poiesic/docrag/storage/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticLoader returns a fixed document.
type staticLoader struct {
	doc *document.Document
	err error
}

func (l *staticLoader) Load(context.Context) (*document.Document, error) {
	return l.doc, l.err
}

func testDocument(n int) *document.Document {
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			ID:       core.ChunkID(i),
			Content:  fmt.Sprintf("trecho %d do documento", i),
			Metadata: map[string]any{"source": "document.pdf", "page": i/15 + 1},
		}
	}
	return &document.Document{
		Source:      "document.pdf",
		Fingerprint: core.Fingerprint([]byte(fmt.Sprintf("document with %d chunks", n))),
		Pages:       3,
		Chunks:      chunks,
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	cfg.Jitter = 0
	return cfg
}

func newTestIngester(t *testing.T, doc *document.Document, embedder ai.Embedder, store storage.Store, cfg *Config, out io.Writer) *Ingester {
	t.Helper()
	ing, err := NewIngester(&staticLoader{doc: doc}, embedder, store, cfg, out,
		WithEmbeddingModel("mock-embedding"),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return ing
}

func TestIngester_BatchesFortyFiveChunks(t *testing.T) {
	store := storagemock.NewMockStore()
	embedder := aimock.NewMockEmbedder()
	var out bytes.Buffer

	result, err := newTestIngester(t, testDocument(45), embedder, store, testConfig(), &out).Run(context.Background())
	require.NoError(t, err)

	upserts := store.Upserts()
	require.Len(t, upserts, 3)
	assert.Len(t, upserts[0].IDs, 20)
	assert.Len(t, upserts[1].IDs, 20)
	assert.Len(t, upserts[2].IDs, 5)

	var ids []string
	for _, call := range upserts {
		ids = append(ids, call.IDs...)
	}
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("doc-%d", i), id)
	}

	assert.Equal(t, 45, result.Chunks)
	assert.Equal(t, 3, result.Batches)
	assert.False(t, result.Skipped)

	text := out.String()
	assert.Contains(t, text, "Enviando bloco 1 de 3...")
	assert.Contains(t, text, "Enviando bloco 3 de 3...")
	assert.Contains(t, text, "Processamento concluído com sucesso!")

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, count)
}

func TestIngester_EmptyDocumentMakesNoStoreCalls(t *testing.T) {
	store := storagemock.NewMockStore()
	embedder := aimock.NewMockEmbedder()
	var out bytes.Buffer

	result, err := newTestIngester(t, testDocument(0), embedder, store, testConfig(), &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Chunks)
	assert.Equal(t, 0, store.CallCount())
	assert.Equal(t, 0, embedder.CallCount())
	manifest, err := store.LoadManifest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, manifest)
	assert.Empty(t, out.String())
}

func TestIngester_RetriesThrottledBatchOnce(t *testing.T) {
	store := storagemock.NewMockStore()
	embedder := aimock.NewMockEmbedder()

	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, &ai.ProviderError{Provider: "googleai", Kind: ai.KindThrottled, StatusCode: 429, Err: errors.New("quota exceeded")}
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = aimock.GenerateVector(text, 8)
		}
		return vectors, nil
	}

	var out bytes.Buffer
	_, err := newTestIngester(t, testDocument(45), embedder, store, testConfig(), &out).Run(context.Background())
	require.NoError(t, err)

	upserts := store.Upserts()
	require.Len(t, upserts, 3, "the throttled batch is stored exactly once")

	seen := make(map[string]int)
	for _, call := range upserts {
		for _, id := range call.IDs {
			seen[id]++
		}
	}
	assert.Len(t, seen, 45)
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s upserted more than once", id)
	}

	assert.Equal(t, 4, embedder.CallCount())
	assert.Equal(t, 1, strings.Count(out.String(), "Limite de taxa atingido. Aguardando"))
	assert.Equal(t, 1, strings.Count(out.String(), "Enviando bloco 2 de 3..."), "batch 2 is announced once")
}

func TestIngester_RetriesTransientStoreError(t *testing.T) {
	store := storagemock.NewMockStore()
	var failures atomic.Int32
	store.UpsertFunc = func(context.Context, []*core.Chunk, [][]float32) error {
		if failures.Add(1) == 1 {
			return &storage.TransientError{Err: errors.New("connection reset")}
		}
		return nil
	}

	var out bytes.Buffer
	_, err := newTestIngester(t, testDocument(5), aimock.NewMockEmbedder(), store, testConfig(), &out).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.Upserts(), 1)
	assert.Equal(t, 1, strings.Count(out.String(), "Serviço temporariamente indisponível. Aguardando"))
	assert.NotContains(t, out.String(), "Limite de taxa atingido", "a dropped connection is not a rate limit")
}

func TestIngester_FatalErrorAborts(t *testing.T) {
	store := storagemock.NewMockStore()
	embedder := aimock.NewMockEmbedder()
	fatal := &ai.ProviderError{Provider: "googleai", Kind: ai.KindFatal, StatusCode: 400, Err: errors.New("invalid argument")}

	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, fatal
		}
		return make([][]float32, len(texts)), nil
	}

	_, err := newTestIngester(t, testDocument(45), embedder, store, testConfig(), nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "batch 2 of 3")

	assert.Len(t, store.Upserts(), 1, "only the first batch was stored")
	assert.Equal(t, 2, embedder.CallCount(), "fatal errors are not retried")

	manifest, err := store.LoadManifest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, manifest, "a failed run writes no manifest")
}

func TestIngester_RetriesExhausted(t *testing.T) {
	store := storagemock.NewMockStore()
	embedder := aimock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, &ai.ProviderError{Provider: "googleai", Kind: ai.KindUnavailable, StatusCode: 503, Err: errors.New("overloaded")}
	}

	cfg := testConfig()
	cfg.MaxAttempts = 3

	_, err := newTestIngester(t, testDocument(5), embedder, store, cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.True(t, ai.IsRetryable(err))
	assert.Equal(t, 3, embedder.CallCount())
	assert.Empty(t, store.Upserts())
}

func TestIngester_EmbeddingCountMismatch(t *testing.T) {
	embedder := aimock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}

	_, err := newTestIngester(t, testDocument(3), embedder, storagemock.NewMockStore(), testConfig(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestIngester_LoaderError(t *testing.T) {
	store := storagemock.NewMockStore()
	loader := &staticLoader{err: fmt.Errorf("%w: document.pdf", document.ErrPDFNotFound)}

	ing, err := NewIngester(loader, aimock.NewMockEmbedder(), store, testConfig(), nil)
	require.NoError(t, err)

	_, err = ing.Run(context.Background())
	assert.ErrorIs(t, err, document.ErrPDFNotFound)
	assert.Equal(t, 0, store.CallCount())
}

func TestIngester_Manifest(t *testing.T) {
	store := storagemock.NewMockStore()
	doc := testDocument(7)

	_, err := newTestIngester(t, doc, aimock.NewMockEmbedder(), store, testConfig(), nil).Run(context.Background())
	require.NoError(t, err)

	manifest, err := store.LoadManifest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, manifest)
	assert.Equal(t, &core.Manifest{
		Source:         "document.pdf",
		Fingerprint:    doc.Fingerprint,
		Chunks:         7,
		EmbeddingModel: "mock-embedding",
		IngestedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}, manifest)
}

func TestIngester_SkipUnchanged(t *testing.T) {
	doc := testDocument(10)
	cfg := testConfig()
	cfg.SkipUnchanged = true

	t.Run("matching manifest skips", func(t *testing.T) {
		store := storagemock.NewMockStore()
		require.NoError(t, store.SaveManifest(context.Background(), &core.Manifest{Fingerprint: doc.Fingerprint, Chunks: 10}))
		embedder := aimock.NewMockEmbedder()
		var out bytes.Buffer

		result, err := newTestIngester(t, doc, embedder, store, cfg, &out).Run(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Empty(t, store.Upserts())
		assert.Equal(t, 0, embedder.CallCount())
		assert.Contains(t, out.String(), "Documento sem alterações; ingestão ignorada.")
	})

	t.Run("changed fingerprint ingests", func(t *testing.T) {
		store := storagemock.NewMockStore()
		require.NoError(t, store.SaveManifest(context.Background(), &core.Manifest{Fingerprint: "other", Chunks: 10}))

		result, err := newTestIngester(t, doc, aimock.NewMockEmbedder(), store, cfg, nil).Run(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.Len(t, store.Upserts(), 1)
	})

	t.Run("no manifest ingests", func(t *testing.T) {
		store := storagemock.NewMockStore()

		result, err := newTestIngester(t, doc, aimock.NewMockEmbedder(), store, cfg, nil).Run(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.Len(t, store.Upserts(), 1)
	})
}

func TestIngester_PrunesStaleChunks(t *testing.T) {
	store := storagemock.NewMockStore()
	ctx := context.Background()

	_, err := newTestIngester(t, testDocument(30), aimock.NewMockEmbedder(), store, testConfig(), nil).Run(ctx)
	require.NoError(t, err)

	t.Run("shorter document converges", func(t *testing.T) {
		result, err := newTestIngester(t, testDocument(12), aimock.NewMockEmbedder(), store, testConfig(), nil).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 18, result.Pruned)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 12, count)
	})

	t.Run("prune disabled keeps stale chunks", func(t *testing.T) {
		cfg := testConfig()
		cfg.Prune = false
		_, err := newTestIngester(t, testDocument(30), aimock.NewMockEmbedder(), store, cfg, nil).Run(ctx)
		require.NoError(t, err)

		result, err := newTestIngester(t, testDocument(5), aimock.NewMockEmbedder(), store, cfg, nil).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Pruned)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 30, count)
	})
}

func TestNewIngester_Validation(t *testing.T) {
	loader := &staticLoader{doc: testDocument(1)}
	embedder := aimock.NewMockEmbedder()
	store := storagemock.NewMockStore()

	_, err := NewIngester(nil, embedder, store, nil, nil)
	assert.ErrorIs(t, err, ErrLoaderRequired)

	_, err = NewIngester(loader, nil, store, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewIngester(loader, embedder, nil, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewIngester(loader, embedder, store, &Config{BatchSize: 0, MaxAttempts: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	ing, err := NewIngester(loader, embedder, store, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, ing.config.BatchSize)
}

func TestProgressTracker(t *testing.T) {
	throttled := &ai.ProviderError{Provider: "googleai", Kind: ai.KindThrottled, StatusCode: 429, Err: errors.New("quota")}
	unavailable := &ai.ProviderError{Provider: "googleai", Kind: ai.KindUnavailable, StatusCode: 503, Err: errors.New("overloaded")}

	t.Run("reports batches and retries", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 45, 20)
		assert.Equal(t, 3, tracker.Batches())

		tracker.BeginBatch(1)
		assert.Empty(t, buf.String(), "nothing is reported before Start")

		tracker.Start()
		tracker.BeginBatch(1)
		tracker.Retrying(1500*time.Millisecond, throttled)
		tracker.Retrying(2*time.Second, unavailable)
		tracker.Finish()

		assert.Equal(t,
			"Enviando bloco 1 de 3...\n"+
				"Limite de taxa atingido. Aguardando 1.5s...\n"+
				"Serviço temporariamente indisponível. Aguardando 2s...\n"+
				"Processamento concluído com sucesso!\n",
			buf.String())
		assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	})

	t.Run("sent is capped at the chunk count", func(t *testing.T) {
		tracker := NewProgressTracker(io.Discard, 45, 20)
		assert.Zero(t, tracker.Sent(20), "nothing is counted before Start")

		tracker.Start()
		assert.Equal(t, 20, tracker.Sent(20))
		assert.Equal(t, 40, tracker.Sent(20))
		assert.Equal(t, 45, tracker.Sent(20))
	})

	t.Run("skipped needs no start", func(t *testing.T) {
		var buf bytes.Buffer
		NewProgressTracker(&buf, 0, 20).Skipped()
		assert.Equal(t, "Documento sem alterações; ingestão ignorada.\n", buf.String())
	})
}
