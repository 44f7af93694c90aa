/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the page document model: fields, tables and the
// references that identify them. It is serialized as JSON by the template
// store and deep-copied by the history.
package domain

import (
	"errors"
	"fmt"
	"time"

	"letterforge/internal/geometry"
)

// FieldKind tags the variant of a Field.
type FieldKind string

const (
	KindText  FieldKind = "text"
	KindImage FieldKind = "image"
)

// Align is the horizontal alignment of a text field.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// BorderStyle controls how table grid lines are drawn.
type BorderStyle string

const (
	BorderNone  BorderStyle = "none"
	BorderLight BorderStyle = "light"
	BorderFull  BorderStyle = "full"
)

// ElementType distinguishes the two element collections of a document.
type ElementType string

const (
	ElementField ElementType = "field"
	ElementTable ElementType = "table"
)

// Field is a text or image element placed on the page.
type Field struct {
	ID   int       `json:"id"`
	Kind FieldKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	W    float64   `json:"w"`
	H    float64   `json:"h"`

	// text
	Value    string  `json:"value,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Bold     bool    `json:"bold,omitempty"`
	Italic   bool    `json:"italic,omitempty"`
	Align    Align   `json:"align,omitempty"`

	// image
	DataURL string `json:"dataUrl,omitempty"`
}

func (f Field) Rect() geometry.Rect { return geometry.R(f.X, f.Y, f.W, f.H) }

// SetRect copies the geometry of r onto the field.
func (f *Field) SetRect(r geometry.Rect) { f.X, f.Y, f.W, f.H = r.X, r.Y, r.W, r.H }

// Table is a rectangular grid of cell strings.
type Table struct {
	ID          int         `json:"id"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	W           float64     `json:"w"`
	H           float64     `json:"h"`
	Rows        [][]string  `json:"rows"`
	HeaderRow   bool        `json:"headerRow"`
	BorderStyle BorderStyle `json:"borderStyle"`
}

func (t Table) Rect() geometry.Rect { return geometry.R(t.X, t.Y, t.W, t.H) }

// SetRect copies the geometry of r onto the table.
func (t *Table) SetRect(r geometry.Rect) { t.X, t.Y, t.W, t.H = r.X, r.Y, r.W, r.H }

// Columns returns the column count of the first row.
func (t Table) Columns() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	t.Rows = CloneRows(t.Rows)
	return t
}

// CloneRows deep-copies a cell grid.
func CloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// NormalizeRows pads every row to the widest row so the grid is rectangular.
// It returns nil when the grid has no cells at all.
func NormalizeRows(rows [][]string) [][]string {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if len(rows) == 0 || cols == 0 {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, cols)
		copy(row, r)
		out[i] = row
	}
	return out
}

// ElementRef identifies a single element of a document.
type ElementRef struct {
	ID   int         `json:"id"`
	Type ElementType `json:"type"`
}

// IsZero reports whether the ref points at nothing.
func (r ElementRef) IsZero() bool { return r.Type == "" }

func (r ElementRef) String() string {
	if r.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

// FieldRef and TableRef build refs for the two collections.
func FieldRef(id int) ElementRef { return ElementRef{ID: id, Type: ElementField} }
func TableRef(id int) ElementRef { return ElementRef{ID: id, Type: ElementTable} }

// Element is a read-only view of any element, used where fields and tables
// are handled together (hit testing, export ordering).
type Element struct {
	Ref   ElementRef
	Rect  geometry.Rect
	Field *Field
	Table *Table
}

// Snapshot is the part of a document the history records.
type Snapshot struct {
	Fields []Field `json:"fields"`
	Tables []Table `json:"tables"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Fields: make([]Field, len(s.Fields)),
		Tables: make([]Table, len(s.Tables)),
	}
	copy(out.Fields, s.Fields)
	for i, t := range s.Tables {
		out.Tables[i] = t.Clone()
	}
	return out
}

// Document is the full persisted state of a template.
type Document struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Fields    []Field   `json:"fields"`
	Tables    []Table   `json:"tables"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// NormalizeBorders gives tables without a border style the light default.
func (d *Document) NormalizeBorders() {
	for i := range d.Tables {
		if d.Tables[i].BorderStyle == "" {
			d.Tables[i].BorderStyle = BorderLight
		}
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	s := d.Snapshot()
	d.Fields, d.Tables = s.Fields, s.Tables
	return d
}

// Snapshot returns a deep copy of the element collections.
func (d Document) Snapshot() Snapshot {
	return Snapshot{Fields: d.Fields, Tables: d.Tables}.Clone()
}

// Elements lists fields then tables, which is also the paint order.
func (d *Document) Elements() []Element {
	out := make([]Element, 0, len(d.Fields)+len(d.Tables))
	for i := range d.Fields {
		f := &d.Fields[i]
		out = append(out, Element{Ref: FieldRef(f.ID), Rect: f.Rect(), Field: f})
	}
	for i := range d.Tables {
		t := &d.Tables[i]
		out = append(out, Element{Ref: TableRef(t.ID), Rect: t.Rect(), Table: t})
	}
	return out
}

// MaxID returns the largest element id in use, or 0.
func (d Document) MaxID() int {
	m := 0
	for _, f := range d.Fields {
		m = max(m, f.ID)
	}
	for _, t := range d.Tables {
		m = max(m, t.ID)
	}
	return m
}

// Validation errors.
var (
	ErrDuplicateID   = errors.New("duplicate element id")
	ErrUnknownKind   = errors.New("unknown field kind")
	ErrEmptyTable    = errors.New("table has no rows or columns")
	ErrRaggedTable   = errors.New("table rows differ in column count")
	ErrUnknownBorder = errors.New("unknown border style")
)

// Validate checks the structural invariants that geometry sanitation cannot
// repair: unique ids, known variants and rectangular tables.
func (d Document) Validate() error {
	seen := make(map[int]bool, len(d.Fields)+len(d.Tables))
	for _, f := range d.Fields {
		if seen[f.ID] {
			return fmt.Errorf("field %d: %w", f.ID, ErrDuplicateID)
		}
		seen[f.ID] = true
		switch f.Kind {
		case KindText, KindImage:
		default:
			return fmt.Errorf("field %d: %w %q", f.ID, ErrUnknownKind, f.Kind)
		}
	}
	for _, t := range d.Tables {
		if seen[t.ID] {
			return fmt.Errorf("table %d: %w", t.ID, ErrDuplicateID)
		}
		seen[t.ID] = true
		if t.Columns() == 0 {
			return fmt.Errorf("table %d: %w", t.ID, ErrEmptyTable)
		}
		for _, r := range t.Rows {
			if len(r) != t.Columns() {
				return fmt.Errorf("table %d: %w", t.ID, ErrRaggedTable)
			}
		}
		switch t.BorderStyle {
		case BorderNone, BorderLight, BorderFull:
		default:
			return fmt.Errorf("table %d: %w %q", t.ID, ErrUnknownBorder, t.BorderStyle)
		}
	}
	return nil
}
