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


package sqlite

import (
	"context"
	"time"

	"github.com/poiesic/verbatim/core"
)

// SeedStore creates or replaces the store at path with the given rows and a
// fresh snapshot. Intended for tests and fixtures.
func SeedStore(ctx context.Context, path string, verbatims ...*core.Verbatim) (*core.Snapshot, error) {
	builder, err := Rebuild(path)
	if err != nil {
		return nil, err
	}
	defer builder.Abort()

	if _, err := builder.AddVerbatims(ctx, verbatims...); err != nil {
		return nil, err
	}

	snapshot := core.NewSnapshot(time.Now())
	for _, v := range verbatims {
		snapshot.Counts[v.Type]++
	}
	if err := builder.Commit(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}
