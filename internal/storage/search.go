/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SearchQuery describes a catalog search.
// Text is split into terms that must all match as word prefixes; set Raw to
// pass Text to FTS5 unchanged (phrases, AND/OR/NOT). An empty Text lists all
// templates, newest first. Limit/Offset paginate; Limit defaults to 100.
type SearchQuery struct {
	Text   string
	Raw    bool
	Limit  int
	Offset int
}

// SearchResult is one matching template. Snippet marks hits with [ ].
type SearchResult struct {
	ID        string
	Title     string
	UpdatedAt time.Time
	Fields    int
	Tables    int
	Snippet   string
}

// Search queries the catalog.
func (ix *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	match := strings.TrimSpace(q.Text)
	if match != "" && !q.Raw {
		match = PrefixQuery(match)
	}
	if match != "" {
		sb.WriteString("SELECT t.id, t.title, t.updated_at, t.fields, t.tables, snippet(fts_templates, 1, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_templates JOIN templates t ON fts_templates.rowid = t.seq\n")
		sb.WriteString("WHERE fts_templates MATCH ?\n")
		sb.WriteString("ORDER BY bm25(fts_templates)\n")
		args = append(args, match)
	} else {
		sb.WriteString("SELECT t.id, t.title, t.updated_at, t.fields, t.tables, ''\n")
		sb.WriteString("FROM templates t\n")
		sb.WriteString("ORDER BY t.updated_at DESC, t.seq\n")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, max(q.Offset, 0))

	rows, err := ix.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var ts string
		var sn sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &ts, &r.Fields, &r.Tables, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// PrefixQuery turns free text into an FTS5 query where every term must match
// as a word prefix. Quotes inside terms are escaped.
func PrefixQuery(text string) string {
	terms := strings.Fields(text)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}
