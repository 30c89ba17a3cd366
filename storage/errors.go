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

import "errors"

// Errors returned by verbatim store implementations. Callers match them with
// errors.Is; implementations wrap them with the failing path or record.
var (
	ErrNotFound = errors.New("verbatim not found")

	// ErrDuplicateKey is returned when a snapshot holds the same refid twice.
	ErrDuplicateKey = errors.New("duplicate refid")

	ErrTransactionFailed = errors.New("store transaction failed")

	// ErrSnapshotClosed is returned by a snapshot builder after Commit or Abort.
	ErrSnapshotClosed = errors.New("snapshot already committed or aborted")

	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreNotFound indicates that no verbatim store exists at the given path.
	ErrStoreNotFound = errors.New("verbatim store not found")

	// ErrCorruptMetadata is returned when snapshot or scoring metadata cannot
	// be decoded.
	ErrCorruptMetadata = errors.New("corrupt store metadata")
)
