/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"letterforge/internal/storage"
)

// Search runs a full text query over published templates. It takes the
// same query as the local index and returns the same result shape, so the
// two can be used interchangeably.
func (r *Repo) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	text := strings.TrimSpace(q.Text)
	tsq := ""
	if text != "" {
		if q.Raw {
			tsq = "websearch_to_tsquery('simple', " + place(text) + ")"
		} else if pq := prefixTSQuery(text); pq != "" {
			tsq = "to_tsquery('simple', " + place(pq) + ")"
		}
	}
	if tsq != "" {
		b.WriteString("SELECT id, title, updated_at, fields, tables, ")
		b.WriteString("ts_headline('simple', body, " + tsq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12') ")
		b.WriteString("FROM templates WHERE search_vector @@ " + tsq + " ")
		b.WriteString("ORDER BY ts_rank(search_vector, " + tsq + ") DESC, updated_at DESC ")
	} else {
		b.WriteString("SELECT id, title, updated_at, fields, tables, '' FROM templates ORDER BY updated_at DESC, id ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	b.WriteString("LIMIT " + place(limit) + " OFFSET " + place(max(q.Offset, 0)))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var res storage.SearchResult
		if err := rows.Scan(&res.ID, &res.Title, &res.UpdatedAt, &res.Fields, &res.Tables, &res.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// prefixTSQuery turns free text into a to_tsquery expression where every
// term must match as a prefix. Characters tsquery treats as operators are
// dropped.
func prefixTSQuery(text string) string {
	var terms []string
	for _, f := range strings.Fields(text) {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, f)
		if clean != "" {
			terms = append(terms, clean+":*")
		}
	}
	return strings.Join(terms, " & ")
}
