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
	"math"
	"strings"
)

// ValidateVerbatim validates a Verbatim according to domain rules.
//
// Validation rules:
//   - RefID, Title and Content must not be empty
//   - Type must be a known provenance
//   - ParentRefID and ParentType must not be empty
//   - Score, when set, must be finite
//
// NOT validated:
//   - ID (0 is valid before insertion)
func ValidateVerbatim(v *Verbatim) error {
	if v == nil {
		return fmt.Errorf("%w: verbatim is nil", ErrInvalidVerbatim)
	}

	if v.RefID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidVerbatim, ErrEmptyRefID)
	}

	if v.Title == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidVerbatim, v.RefID, ErrEmptyTitle)
	}

	if v.Content == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidVerbatim, v.RefID, ErrEmptyContent)
	}

	if err := ValidateProvenance(v.Type); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidVerbatim, v.RefID, err)
	}

	if v.ParentRefID == "" || v.ParentType == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidVerbatim, v.RefID, ErrMissingParent)
	}

	if v.Score != nil {
		if err := ValidateScore(*v.Score); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidVerbatim, v.RefID, err)
		}
	}

	return nil
}

// ValidateProvenance validates that a Provenance has a known value.
func ValidateProvenance(p Provenance) error {
	switch p {
	case ProvenanceMeetings, ProvenanceCalls, ProvenanceNotes:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidProvenance, string(p))
}

// ValidateScore checks that a relevance score is a finite number.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return nil
}

// Eligible reports whether a raw source row may become a verbatim.
//
// Eligibility rules:
//   - Description must be present and non-empty
//   - ParentID and ParentType must be present and non-empty
//   - Notes must not carry an attached file
func Eligible(raw *RawRecord) bool {
	if raw == nil || raw.RefID == "" {
		return false
	}
	if isBlank(raw.Description) || isBlank(raw.ParentID) || isBlank(raw.ParentType) {
		return false
	}
	if raw.Type == ProvenanceNotes && raw.Filename != nil {
		return false
	}
	return true
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
