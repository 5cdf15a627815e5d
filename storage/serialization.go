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

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/docrag/core"
)

// MarshalChunkRecord serializes a ChunkRecord to bytes.
func MarshalChunkRecord(record *core.ChunkRecord) []byte {
	buf := make([]byte, core.ChunkRecordMUS.Size(*record))
	core.ChunkRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalChunkRecord deserializes a ChunkRecord from bytes.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	record, _, err := core.ChunkRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalManifestRecord serializes a ManifestRecord to bytes.
func MarshalManifestRecord(record *core.ManifestRecord) []byte {
	buf := make([]byte, core.ManifestRecordMUS.Size(*record))
	core.ManifestRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalManifestRecord deserializes a ManifestRecord from bytes.
func UnmarshalManifestRecord(data []byte) (*core.ManifestRecord, error) {
	record, _, err := core.ManifestRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalMetadata encodes chunk metadata as a JSON object.
// Nil metadata encodes as an empty object.
func MarshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalMetadata decodes a JSON object produced by MarshalMetadata.
// Numbers decode as float64.
func UnmarshalMetadata(data []byte) (map[string]any, error) {
	metadata := map[string]any{}
	if len(data) == 0 {
		return metadata, nil
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return metadata, nil
}

// NewChunkRecord builds the persisted form of a chunk and its vector.
func NewChunkRecord(chunk *core.Chunk, vector []float32) (*core.ChunkRecord, error) {
	metadata, err := MarshalMetadata(chunk.Metadata)
	if err != nil {
		return nil, err
	}
	return &core.ChunkRecord{
		ID:       chunk.ID,
		Content:  chunk.Content,
		Metadata: string(metadata),
		Vector:   vector,
	}, nil
}

// ChunkFromRecord rebuilds a chunk from its persisted form.
func ChunkFromRecord(record *core.ChunkRecord) (*core.Chunk, error) {
	metadata, err := UnmarshalMetadata([]byte(record.Metadata))
	if err != nil {
		return nil, err
	}
	return &core.Chunk{
		ID:       record.ID,
		Content:  record.Content,
		Metadata: metadata,
	}, nil
}

// NewManifestRecord converts a manifest into its persisted form.
func NewManifestRecord(manifest *core.Manifest) *core.ManifestRecord {
	return &core.ManifestRecord{
		Source:         manifest.Source,
		Fingerprint:    manifest.Fingerprint,
		Chunks:         manifest.Chunks,
		EmbeddingModel: manifest.EmbeddingModel,
		IngestedAt:     manifest.IngestedAt.UnixMicro(),
	}
}

// ManifestFromRecord converts a persisted manifest back to its domain form.
func ManifestFromRecord(record *core.ManifestRecord) *core.Manifest {
	return &core.Manifest{
		Source:         record.Source,
		Fingerprint:    record.Fingerprint,
		Chunks:         record.Chunks,
		EmbeddingModel: record.EmbeddingModel,
		IngestedAt:     time.UnixMicro(record.IngestedAt).UTC(),
	}
}
