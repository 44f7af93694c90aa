/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"math/rand"
	"testing"

	"letterforge/internal/domain"
)

func checkRect(t *testing.T, tb domain.Table) {
	t.Helper()
	if len(tb.Rows) < 1 || tb.Columns() < 1 {
		t.Fatalf("table must keep at least one row and column: %v", tb.Rows)
	}
	for i, r := range tb.Rows {
		if len(r) != tb.Columns() {
			t.Fatalf("row %d has %d cells, want %d", i, len(r), tb.Columns())
		}
	}
}

func TestAddTableHasLabelledHeader(t *testing.T) {
	s := newStore(t)
	id := s.AddTable(3, 2)
	tb := s.Document().Tables[0]
	if tb.ID != id || len(tb.Rows) != 3 || tb.Columns() != 2 || tb.Rows[0][1] != "Column 2" || !tb.HeaderRow {
		t.Fatalf("unexpected table: %+v", tb)
	}
	if tb.H != 3*TableRowHeight {
		t.Fatalf("height = %v", tb.H)
	}
}

func TestTableStructuralOps(t *testing.T) {
	s := newStore(t)
	id := s.AddTable(1, 1)
	n := s.HistoryLen()
	if s.RemoveTableRow(id, 0) {
		t.Fatalf("removing the last row must be refused")
	}
	if s.RemoveTableColumn(id, 0) {
		t.Fatalf("removing the last column must be refused")
	}
	if s.HistoryLen() != n {
		t.Fatalf("refused edits must not commit")
	}
	s.AddTableColumn(id)
	s.AddTableRow(id)
	tb := s.Document().Tables[0]
	checkRect(t, tb)
	if tb.Rows[0][1] != "Column 2" || tb.Rows[1][1] != "" {
		t.Fatalf("unexpected cells: %v", tb.Rows)
	}
	if s.HistoryLen() != n+2 {
		t.Fatalf("structural edits must commit, len=%d", s.HistoryLen())
	}
	if !s.UpdateTableCell(id, 1, 0, "x") || s.HistoryLen() != n+2 {
		t.Fatalf("cell edit should apply without commit")
	}
	if s.UpdateTableCell(id, 5, 0, "x") {
		t.Fatalf("out of range cell edit must fail")
	}
	if !s.RemoveTableColumn(id, 0) {
		t.Fatalf("remove column failed")
	}
	tb = s.Document().Tables[0]
	if tb.Rows[0][0] != "Column 2" {
		t.Fatalf("wrong column removed: %v", tb.Rows)
	}
}

func TestTableRectangularityUnderRandomOps(t *testing.T) {
	s := newStore(t)
	id := s.AddTable(2, 3)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 400; i++ {
		tb := s.Document().Tables[0]
		switch rng.Intn(4) {
		case 0:
			s.AddTableRow(id)
		case 1:
			s.RemoveTableRow(id, rng.Intn(len(tb.Rows)+1))
		case 2:
			s.AddTableColumn(id)
		case 3:
			s.RemoveTableColumn(id, rng.Intn(tb.Columns()+1))
		}
		checkRect(t, s.Document().Tables[0])
	}
}

func TestUpdateTablePatch(t *testing.T) {
	s := newStore(t)
	id := s.AddTable(2, 2)
	full := domain.BorderFull
	s.UpdateTable(id, TablePatch{
		Rows:        [][]string{{"a", "b", "c"}, {"d"}},
		HeaderRow:   Ptr(false),
		BorderStyle: &full,
	})
	tb := s.Document().Tables[0]
	checkRect(t, tb)
	if tb.Columns() != 3 || tb.HeaderRow || tb.BorderStyle != domain.BorderFull {
		t.Fatalf("patch not applied: %+v", tb)
	}
	s.UpdateTable(id, TablePatch{Rows: [][]string{}, BorderStyle: Ptr(domain.BorderStyle("dotted"))})
	tb = s.Document().Tables[0]
	if tb.Columns() != 3 || tb.BorderStyle != domain.BorderFull {
		t.Fatalf("empty rows or unknown border must be ignored: %+v", tb)
	}
}
