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

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidChunkID indicates the ID is not of the form doc-<index>.
	ErrInvalidChunkID = errors.New("chunk id must have the form doc-<index>")

	// ErrEmptyVector indicates an embedding vector has no components.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrVectorCountMismatch indicates chunks and vectors are not paired 1:1.
	ErrVectorCountMismatch = errors.New("chunk and vector counts differ")

	// ErrDuplicateChunkID indicates the same ID appears twice in one batch.
	ErrDuplicateChunkID = errors.New("duplicate chunk id")
)
