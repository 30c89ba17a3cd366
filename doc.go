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


// Package verbatim locates and ranks free-text CRM records (meeting notes,
// call logs and notes) relevant to a query, grouped by the CRM entity they
// belong to.
//
// The pipeline has four stages, each runnable on its own:
//
//	extract  CRM source -> verbatim store (SQLite)
//	index    verbatim store -> full-text index (Badger)
//	score    index + query -> scores written back into the store
//	read     scored store -> ranked report of parent entities
//
// Usage:
//
//	p := verbatim.New(
//		verbatim.WithStorePath("data/query/verbatim.sqlite"),
//		verbatim.WithIndexPath("data/query/verbatim_index"),
//	)
//	groups, err := p.Query(ctx, cfg, "pricing OR renewal", core.FormatExtended, 10)
package verbatim
