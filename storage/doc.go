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

// Package storage provides the storage abstraction layer for docrag.
//
// This package defines the VectorStore and ManifestRepository interfaces that
// decouple retrieval and ingestion from a concrete database. Two backends
// implement them:
//
//   - storage/pgvector: PostgreSQL with the pgvector extension, using the
//     collection/embedding table layout shared with LangChain's PGVector
//   - storage/badger: an embedded BadgerDB directory for local runs and tests
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := pgvector.Open(ctx, url, collection)  // returns storage.Store
//
// Internal constructors (newStore, etc.) may return concrete types since
// they're only used within the implementation package.
//
// # Identity
//
// Chunks are keyed by their string ID (doc-<index>). Upsert replaces an
// existing chunk with the same ID, which makes re-running an ingestion over
// the same document idempotent.
//
// # Missing Collections
//
// SimilaritySearch on a collection that does not exist, or whose tables were
// never created, returns no results rather than an error.
package storage
