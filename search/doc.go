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

// Package search retrieves document context for a question.
//
// The Retriever embeds the question, asks the vector store for the k most
// similar chunks and joins their text with ContextSeparator, keeping the
// store's order. There is no de-duplication, re-ranking or score threshold.
//
// HasData is a cheap probe used before chat starts to decide whether the
// document must be ingested first. It reports false for an empty store and
// for any failure alike.
package search
