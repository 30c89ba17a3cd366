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


// Package score runs a query against the index and writes the resulting
// relevance scores back into the verbatim store.
//
// A scoring pass replaces every score: rows that do not match the query end
// up with a NULL score. The pass runs in one store transaction, so a failure
// leaves the previous scores in place.
//
// Usage:
//
//	searcher, err := index.Open(indexDir, logger)
//	if err != nil {
//		return err
//	}
//	defer searcher.Close()
//
//	scorer, err := score.NewScorer(repo, searcher, score.WithPageSize(50))
//	if err != nil {
//		return err
//	}
//	summary, err := scorer.Score(ctx, `pricing AND NOT "free trial"`)
package score
