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


// Package index builds and searches the full-text index over verbatims.
//
// The index lives in a Badger directory and holds, per document, the
// retrievable fields (refid, title) and, per field, the postings of every
// analyzed term with its positions. Content is searchable but not stored.
//
// # Building
//
// Rebuild reads the store in keyset batches, analyzes each batch on a
// worker pool, and writes the whole index through a single WriteBatch into a
// fresh sibling directory. The new directory replaces the previous index
// only once it is complete and closed:
//
//	stats, err := index.Rebuild(ctx, repo, "data/query/verbatim_index")
//
// # Searching
//
// Queries use a small boolean language:
//
//	pricing renewal            either term (adjacent terms are OR-ed)
//	"contract renewal"         phrase
//	pricing AND NOT discount   conjunction with exclusion
//	title:(pricing OR quote)   field restriction
//
// Unprefixed terms search both content and title. Documents are scored with
// BM25F and returned by score descending, refid ascending:
//
//	searcher, err := index.Open(dir)
//	defer searcher.Close()
//	query, err := index.Parse(text)
//	results, err := searcher.Search(ctx, query)
//	hits, err := results.Page(1, 20)
package index
