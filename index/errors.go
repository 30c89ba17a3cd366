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


package index

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrIndexNotFound is returned when no index exists at the given directory.
	ErrIndexNotFound = errors.New("index not found")

	// ErrDuplicateDocument is returned when two store rows carry the same refid.
	ErrDuplicateDocument = errors.New("duplicate refid")

	// ErrStaleIndex is returned when the index was not built from the current store snapshot.
	ErrStaleIndex = errors.New("stale index")

	// ErrQuerySyntax marks every query parse failure.
	ErrQuerySyntax = errors.New("query syntax error")

	// ErrCorruptIndex is returned when index data cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrRepositoryRequired is returned when a build is started without a store.
	ErrRepositoryRequired = errors.New("verbatim repository required")
)

// QueryError describes a malformed query. It wraps ErrQuerySyntax.
type QueryError struct {
	Query  string
	Offset int // byte offset into Query
	Msg    string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s at offset %d in %q: %s", ErrQuerySyntax, e.Offset, e.Query, e.Msg)
}

func (e *QueryError) Unwrap() error {
	return ErrQuerySyntax
}
