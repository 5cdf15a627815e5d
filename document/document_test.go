package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSplitter(t *testing.T, opts ...SplitterOption) *Splitter {
	t.Helper()
	s, err := NewSplitter(opts...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

// pageText builds paragraphs of unique words separated by single spaces and
// blank lines.
func pageText(page, paragraphs, wordsPerParagraph int) string {
	var sb strings.Builder
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			sb.WriteString("\n\n")
		}
		for w := 0; w < wordsPerParagraph; w++ {
			if w > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "p%dpar%dw%d", page, p, w)
		}
	}
	return sb.String()
}

func TestSplitter_ChunksAreContiguousAndBounded(t *testing.T) {
	s := newTestSplitter(t)
	pages := []Page{
		{Content: pageText(1, 6, 150), Metadata: map[string]any{"page": 1}},
		{Content: pageText(2, 3, 400), Metadata: map[string]any{"page": 2}},
	}

	chunks, err := s.Split(context.Background(), pages)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Content), DefaultChunkSize)
		assert.NotEmpty(t, chunk.Content)

		page := chunk.Metadata["page"].(int)
		assert.Contains(t, pages[page-1].Content, chunk.Content,
			"chunk %s must be a contiguous span of its page", chunk.ID)
	}

	// Every word of the source appears in some chunk
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, word := range strings.Fields(chunk.Content) {
			seen[word] = true
		}
	}
	for _, page := range pages {
		for _, word := range strings.Fields(page.Content) {
			assert.True(t, seen[word], "word %q lost during splitting", word)
		}
	}
}

func TestSplitter_NeighboursOverlap(t *testing.T) {
	s := newTestSplitter(t)
	chunks, err := s.Split(context.Background(), []Page{{Content: pageText(1, 1, 500)}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		next := strings.Fields(chunks[i].Content)
		assert.True(t, slices.Contains(next, prev[len(prev)-1]),
			"chunk %d should repeat the tail of chunk %d", i, i-1)
	}
}

func TestSplitter_IDsFollowPageOrder(t *testing.T) {
	s := newTestSplitter(t, WithWorkers(4))
	pages := make([]Page, 12)
	for i := range pages {
		pages[i] = Page{Content: pageText(i+1, 2, 120), Metadata: map[string]any{"page": i + 1}}
	}

	chunks, err := s.Split(context.Background(), pages)
	require.NoError(t, err)

	lastPage := 0
	for i, chunk := range chunks {
		assert.Equal(t, fmt.Sprintf("doc-%d", i), chunk.ID)
		page := chunk.Metadata["page"].(int)
		assert.GreaterOrEqual(t, page, lastPage, "chunks are ordered by page")
		lastPage = page
	}
}

func TestSplitter_EmptyInput(t *testing.T) {
	s := newTestSplitter(t)

	chunks, err := s.Split(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = s.Split(context.Background(), []Page{{Content: ""}, {Content: "   \n\n  "}})
	require.NoError(t, err)
	assert.Empty(t, chunks, "pages without text produce no chunks")
}

func TestSplitter_SmallPageIsOneChunk(t *testing.T) {
	s := newTestSplitter(t)
	chunks, err := s.Split(context.Background(), []Page{{Content: "  Faturamento anual de 10 milhões.  "}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Faturamento anual de 10 milhões.", chunks[0].Content)
	assert.Equal(t, "doc-0", chunks[0].ID)
}

func TestSplitter_SanitizesMetadata(t *testing.T) {
	s := newTestSplitter(t)
	pageMeta := map[string]any{"source": "document.pdf", "page": 1, "author": "", "subject": nil}

	chunks, err := s.Split(context.Background(), []Page{{Content: pageText(1, 1, 300), Metadata: pageMeta}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.Equal(t, map[string]any{"source": "document.pdf", "page": 1}, chunk.Metadata)
	}

	chunks[0].Metadata["page"] = 99
	assert.Equal(t, 1, chunks[1].Metadata["page"], "chunks do not share metadata maps")
	assert.Equal(t, "", pageMeta["author"], "page metadata is not modified")
}

func TestSplitter_CanceledContext(t *testing.T) {
	s := newTestSplitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Split(ctx, []Page{{Content: "text"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSplitter_Validation(t *testing.T) {
	_, err := NewSplitter(WithChunkSize(0))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = NewSplitter(WithChunkSize(100), WithChunkOverlap(100))
	assert.ErrorIs(t, err, ErrInvalidChunkOverlap)

	_, err = NewSplitter(WithChunkOverlap(-1))
	assert.ErrorIs(t, err, ErrInvalidChunkOverlap)
}

func TestSanitizeMetadata(t *testing.T) {
	assert.Equal(t, map[string]any{}, SanitizeMetadata(nil))
	assert.Equal(t,
		map[string]any{"page": 0, "ok": "yes", "flag": false},
		SanitizeMetadata(map[string]any{"page": 0, "ok": "yes", "flag": false, "empty": "", "nil": nil}),
		"zero numbers and false are kept",
	)
}

func TestPDFLoader_MissingFile(t *testing.T) {
	s := newTestSplitter(t)
	path := filepath.Join(t.TempDir(), "document.pdf")

	_, err := NewPDFLoader(path, s).Load(context.Background())
	require.ErrorIs(t, err, ErrPDFNotFound)
	assert.Contains(t, err.Error(), path)
}

func TestPDFLoader_Directory(t *testing.T) {
	s := newTestSplitter(t)

	_, err := NewPDFLoader(t.TempDir(), s).Load(context.Background())
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestPDFLoader_InvalidPDF(t *testing.T) {
	s := newTestSplitter(t)
	path := filepath.Join(t.TempDir(), "document.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	loader := NewPDFLoader(path, s)
	assert.Equal(t, path, loader.Path())

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPDFNotFound)
}
