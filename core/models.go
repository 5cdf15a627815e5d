package core

//go:generate go run ../cmd/musgen

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ChunkIDPrefix prefixes every chunk identifier.
const ChunkIDPrefix = "doc-"

// ChunkID returns the deterministic identifier for the chunk at the given
// position in split order.
func ChunkID(index int) string {
	return ChunkIDPrefix + strconv.Itoa(index)
}

// ChunkIndex parses an identifier produced by ChunkID.
// The second return value is false for identifiers in any other format.
func ChunkIndex(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, ChunkIDPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Fingerprint returns the hex encoded BLAKE2b-256 digest of data.
// Identical document bytes always produce identical fingerprints.
func Fingerprint(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Chunk is a contiguous span of extracted document text.
// Chunks are created once during ingestion and never modified afterwards.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]any // Provenance such as "source", "page" and "total_pages"
}

// SearchResult represents a chunk returned by a similarity search.
// For cosine stores a higher score means more similar.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}

// Manifest describes the last successful ingestion into a collection.
type Manifest struct {
	Source         string
	Fingerprint    string
	Chunks         int
	EmbeddingModel string
	IngestedAt     time.Time
}

// Matches reports whether the manifest was produced from the same document
// bytes and the same split result.
func (m *Manifest) Matches(fingerprint string, chunks int) bool {
	if m == nil {
		return false
	}
	return m.Fingerprint == fingerprint && m.Chunks == chunks
}

// ChunkRecord is the persisted form of a chunk in embedded storage.
// Metadata is kept as a JSON object so value types survive a round trip the
// same way they do in the relational store.
type ChunkRecord struct {
	ID       string
	Content  string
	Metadata string
	Vector   []float32
}

// ManifestRecord is the persisted form of a Manifest in embedded storage.
type ManifestRecord struct {
	Source         string
	Fingerprint    string
	Chunks         int
	EmbeddingModel string
	IngestedAt     int64 // Unix microseconds
}
