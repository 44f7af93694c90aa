/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"log/slog"
	"reflect"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
)

// TablePatch is merged into a table by UpdateTable. Rows are padded to a
// rectangle; an empty grid is ignored.
type TablePatch struct {
	GeometryPatch
	Rows        [][]string
	HeaderRow   *bool
	BorderStyle *domain.BorderStyle
}

// ColumnLabel is the header text given to the n-th (1-based) column.
func ColumnLabel(n int) string { return fmt.Sprintf("Column %d", n) }

// AddTable inserts a rows x cols table with a labelled header row, selects it
// and commits history.
func (s *Store) AddTable(rows, cols int) int {
	rows, cols = max(rows, 1), max(cols, 1)
	var id int
	s.apply(func() (bool, string) {
		id = s.allocID()
		grid := make([][]string, rows)
		for r := range grid {
			grid[r] = make([]string, cols)
		}
		for c := 0; c < cols; c++ {
			grid[0][c] = ColumnLabel(c + 1)
		}
		t := domain.Table{ID: id, Rows: grid, HeaderRow: true, BorderStyle: domain.BorderLight}
		t.SetRect(geometry.SanitizeRect(s.defaultRect(DefaultTableW, tableHeight(rows)), s.page))
		s.doc.Tables = append(s.doc.Tables, t)
		s.selection = domain.TableRef(id)
		s.log.Debug("add table", slog.Int("id", id), slog.Int("rows", rows), slog.Int("cols", cols))
		return true, "Add table"
	})
	return id
}

func tableHeight(rows int) float64 {
	return min(float64(rows)*TableRowHeight, MaxImportTableH)
}

// UpdateTable merges p into the table. Geometry changes are sanitized. No
// history entry is written.
func (s *Store) UpdateTable(id int, p TablePatch) bool {
	return s.apply(func() (bool, string) {
		t := s.tableLocked(id)
		if t == nil {
			return false, ""
		}
		changed := false
		if p.touched() {
			r := geometry.SanitizeRect(p.applyTo(t.Rect()), s.page)
			changed = r != t.Rect()
			t.SetRect(r)
		}
		if rows := domain.NormalizeRows(p.Rows); rows != nil && !reflect.DeepEqual(rows, t.Rows) {
			t.Rows = rows
			changed = true
		}
		if p.HeaderRow != nil && *p.HeaderRow != t.HeaderRow {
			t.HeaderRow = *p.HeaderRow
			changed = true
		}
		if p.BorderStyle != nil && *p.BorderStyle != t.BorderStyle {
			switch *p.BorderStyle {
			case domain.BorderNone, domain.BorderLight, domain.BorderFull:
				t.BorderStyle = *p.BorderStyle
				changed = true
			}
		}
		return changed, ""
	})
}

// RemoveTable deletes a table, clears the selection if it pointed there and
// commits history.
func (s *Store) RemoveTable(id int) bool {
	return s.apply(func() (bool, string) {
		i := s.tableIndexLocked(id)
		if i < 0 {
			return false, ""
		}
		s.doc.Tables = append(s.doc.Tables[:i:i], s.doc.Tables[i+1:]...)
		if s.selection == domain.TableRef(id) {
			s.selection = domain.ElementRef{}
		}
		return true, "Remove table"
	})
}

// AddTableRow appends an empty row and commits history.
func (s *Store) AddTableRow(id int) bool {
	return s.apply(func() (bool, string) {
		t := s.tableLocked(id)
		if t == nil {
			return false, ""
		}
		t.Rows = append(t.Rows, make([]string, t.Columns()))
		return true, "Add table row"
	})
}

// RemoveTableRow deletes row index row. It refuses to remove the last row.
func (s *Store) RemoveTableRow(id, row int) bool {
	return s.apply(func() (bool, string) {
		t := s.tableLocked(id)
		if t == nil || len(t.Rows) <= 1 || row < 0 || row >= len(t.Rows) {
			return false, ""
		}
		t.Rows = append(t.Rows[:row:row], t.Rows[row+1:]...)
		return true, "Remove table row"
	})
}

// AddTableColumn appends a cell to every row. A header row gets a generated
// label, other rows an empty cell.
func (s *Store) AddTableColumn(id int) bool {
	return s.apply(func() (bool, string) {
		t := s.tableLocked(id)
		if t == nil {
			return false, ""
		}
		n := t.Columns() + 1
		for r := range t.Rows {
			cell := ""
			if r == 0 && t.HeaderRow {
				cell = ColumnLabel(n)
			}
			t.Rows[r] = append(t.Rows[r], cell)
		}
		return true, "Add table column"
	})
}

// RemoveTableColumn deletes column col from every row. It refuses to remove
// the last column.
func (s *Store) RemoveTableColumn(id, col int) bool {
	return s.apply(func() (bool, string) {
		t := s.tableLocked(id)
		if t == nil || t.Columns() <= 1 || col < 0 || col >= t.Columns() {
			return false, ""
		}
		for r, row := range t.Rows {
			t.Rows[r] = append(row[:col:col], row[col+1:]...)
		}
		return true, "Remove table column"
	})
}

// UpdateTableCell sets one cell. Cell edits are committed by the caller when
// editing ends.
func (s *Store) UpdateTableCell(id, row, col int, value string) bool {
	return s.apply(func() (bool, string) {
		t := s.tableLocked(id)
		if t == nil || row < 0 || row >= len(t.Rows) || col < 0 || col >= t.Columns() {
			return false, ""
		}
		if t.Rows[row][col] == value {
			return false, ""
		}
		t.Rows[row][col] = value
		return true, ""
	})
}

func (s *Store) tableLocked(id int) *domain.Table {
	if i := s.tableIndexLocked(id); i >= 0 {
		return &s.doc.Tables[i]
	}
	return nil
}
