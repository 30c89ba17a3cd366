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
	// ErrInvalidVerbatim indicates a Verbatim failed validation.
	ErrInvalidVerbatim = errors.New("invalid verbatim")

	// ErrEmptyRefID indicates the RefID field is empty.
	ErrEmptyRefID = errors.New("refid cannot be empty")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingParent indicates the parent refid or parent type is empty.
	ErrMissingParent = errors.New("parent refid and type are required")

	// ErrInvalidProvenance indicates an unknown provenance tag.
	ErrInvalidProvenance = errors.New("invalid provenance")

	// ErrInvalidScore indicates a score that is NaN or infinite.
	ErrInvalidScore = errors.New("score must be finite")

	// ErrInvalidFormat indicates an unknown report format.
	ErrInvalidFormat = errors.New("invalid report format")

	// ErrInvalidLimit indicates a negative report size.
	ErrInvalidLimit = errors.New("report limit cannot be negative")
)
