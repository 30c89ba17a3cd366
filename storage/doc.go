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


// Package storage provides the storage abstraction layer for verbatim.
//
// This package defines repository interfaces that decouple the relational
// store from the pipeline stages. The only backend is SQLite
// (storage/sqlite), but stages depend on these interfaces so tests can
// substitute their own.
//
// # Architecture
//
//   - Repository: transaction support and lifecycle
//   - VerbatimRepository: read access to a committed snapshot plus score
//     write-back
//   - SnapshotBuilder: write access to a snapshot that is not yet visible
//
// A store is never modified in place by extraction. A SnapshotBuilder fills
// a fresh database next to the store and Commit swaps it in; Abort discards
// it and leaves the previous store untouched:
//
//	builder, err := sqlite.Rebuild(path)
//	if err != nil {
//	    return err
//	}
//	defer builder.Abort()
//	if _, err := builder.AddVerbatims(ctx, records...); err != nil {
//	    return err
//	}
//	return builder.Commit(ctx, snapshot)
//
// # Transactions
//
// WithTransaction carries the transaction in the context passed to fn.
// Repository methods called with that context join the transaction.
//
// # Thread Safety
//
// Repositories may be shared between goroutines, but the pipeline never
// runs two writers against the same store.
package storage
