package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "faturamento")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "faturamento")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "outra coisa")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 384)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-4, "vectors are unit length")
}

func TestMockEmbedder_RecordsBatches(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimensions = 4
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, m.Batches())
	assert.Equal(t, 1, m.CallCount())

	m.Reset()
	vectors, err := m.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vectors[0], 4)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithServices(NewMockEmbedder(), NewMockChatModel("Olá"))

	answer, err := p.ChatModel().Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Olá", answer)
	assert.Equal(t, []string{"prompt"}, p.GetMockChatModel().Prompts())

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
