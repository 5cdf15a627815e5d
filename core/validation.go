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

package core

import (
	"fmt"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - ID must have the form doc-<index>
//   - Content must not be empty
//
// Metadata is not validated; nil and empty maps are both valid.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if _, ok := ChunkIndex(chunk.ID); !ok {
		return fmt.Errorf("%w: %w: %q", ErrInvalidChunk, ErrInvalidChunkID, chunk.ID)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	return nil
}

// ValidateBatch checks that chunks and vectors pair up 1:1, that every chunk
// is valid, that no ID repeats and that no vector is empty.
func ValidateBatch(chunks []*Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrVectorCountMismatch, len(chunks), len(vectors))
	}

	seen := make(map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		if err := ValidateChunk(chunk); err != nil {
			return err
		}
		if _, dup := seen[chunk.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateChunkID, chunk.ID)
		}
		seen[chunk.ID] = struct{}{}
		if len(vectors[i]) == 0 {
			return fmt.Errorf("%w: chunk %s", ErrEmptyVector, chunk.ID)
		}
	}

	return nil
}
