package googleai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
)

// Embedder implements ai.Embedder using Gemini embedding models.
type Embedder struct {
	embedder embeddings.Embedder
	guard    *guard
	logger   *slog.Logger
}

func newEmbedder(client embeddings.EmbedderClient, g *guard) (*Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &Embedder{
		embedder: embedder,
		guard:    g,
		logger:   slog.Default().With("component", "googleai-embedder"),
	}, nil
}

// EmbedText generates a query embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	var vector []float32
	err := e.guard.do(ctx, func() error {
		var err error
		vector, err = e.embedder.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		e.logger.Debug("failed to generate embedding", "err", err)
		return nil, err
	}
	return vector, nil
}

// EmbedTexts generates embeddings for a batch of texts in one guarded call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var vectors [][]float32
	err := e.guard.do(ctx, func() error {
		var err error
		vectors, err = e.embedder.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		e.logger.Debug("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}
