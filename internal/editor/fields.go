/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"log/slog"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
)

// GeometryPatch carries optional position and size changes.
type GeometryPatch struct {
	X, Y, W, H *float64
}

func (g GeometryPatch) touched() bool { return g.X != nil || g.Y != nil || g.W != nil || g.H != nil }

func (g GeometryPatch) applyTo(r geometry.Rect) geometry.Rect {
	if g.X != nil {
		r.X = *g.X
	}
	if g.Y != nil {
		r.Y = *g.Y
	}
	if g.W != nil {
		r.W = *g.W
	}
	if g.H != nil {
		r.H = *g.H
	}
	return r
}

// FieldPatch is merged into a field by UpdateField. Nil members are left
// alone. Text attributes are ignored for image fields and vice versa.
type FieldPatch struct {
	GeometryPatch
	Value    *string
	FontSize *float64
	Bold     *bool
	Italic   *bool
	Align    *domain.Align
	DataURL  *string
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }

// AddTextField inserts a text field at the default offset, selects it and
// commits history. It returns the new id.
func (s *Store) AddTextField() int {
	var id int
	s.apply(func() (bool, string) {
		id = s.allocID()
		f := domain.Field{
			ID:       id,
			Kind:     domain.KindText,
			Value:    DefaultText,
			FontSize: DefaultFontSize,
			Align:    domain.AlignLeft,
		}
		f.SetRect(geometry.SanitizeRect(s.defaultRect(DefaultTextW, DefaultTextH), s.page))
		s.doc.Fields = append(s.doc.Fields, f)
		s.selection = domain.FieldRef(id)
		s.log.Debug("add text field", slog.Int("id", id))
		return true, "Add text field"
	})
	return id
}

// AddImageField inserts an image scaled down (never up) to MaxInitialImageW
// and the free height below its default position, with its aspect ratio kept, selects it and commits history.
func (s *Store) AddImageField(dataURL string, naturalW, naturalH float64) int {
	var id int
	s.apply(func() (bool, string) {
		id = s.allocID()
		w, h := initialImageSize(naturalW, naturalH, s.page.Placeable().H-DefaultOffset)
		f := domain.Field{ID: id, Kind: domain.KindImage, DataURL: dataURL}
		f.SetRect(geometry.SanitizeRect(s.defaultRect(w, h), s.page))
		s.doc.Fields = append(s.doc.Fields, f)
		s.selection = domain.FieldRef(id)
		s.log.Debug("add image field", slog.Int("id", id), slog.Float64("w", f.W), slog.Float64("h", f.H))
		return true, "Add image field"
	})
	return id
}

func initialImageSize(naturalW, naturalH, maxH float64) (float64, float64) {
	if naturalW <= 0 || naturalH <= 0 {
		return 200, 150
	}
	scale := min(MaxInitialImageW/naturalW, 1)
	if maxH > 0 {
		scale = min(scale, maxH/naturalH)
	}
	return naturalW * scale, naturalH * scale
}

func (s *Store) defaultRect(w, h float64) geometry.Rect {
	return geometry.R(s.page.SafeMargin+DefaultOffset, s.page.SafeMargin+DefaultOffset, w, h)
}

// UpdateField merges p into the field. Geometry changes are sanitized. No
// history entry is written.
func (s *Store) UpdateField(id int, p FieldPatch) bool {
	return s.apply(func() (bool, string) {
		i := s.fieldIndexLocked(id)
		if i < 0 {
			return false, ""
		}
		f := &s.doc.Fields[i]
		before := *f
		if p.touched() {
			f.SetRect(geometry.SanitizeRect(p.applyTo(f.Rect()), s.page))
		}
		switch f.Kind {
		case domain.KindText:
			if p.Value != nil {
				f.Value = *p.Value
			}
			if p.FontSize != nil && *p.FontSize > 0 {
				f.FontSize = *p.FontSize
			}
			if p.Bold != nil {
				f.Bold = *p.Bold
			}
			if p.Italic != nil {
				f.Italic = *p.Italic
			}
			if p.Align != nil {
				switch *p.Align {
				case domain.AlignLeft, domain.AlignCenter, domain.AlignRight:
					f.Align = *p.Align
				}
			}
		case domain.KindImage:
			if p.DataURL != nil {
				f.DataURL = *p.DataURL
			}
		}
		return *f != before, ""
	})
}

// RemoveField deletes a field, clears the selection if it pointed there and
// commits history.
func (s *Store) RemoveField(id int) bool {
	return s.apply(func() (bool, string) {
		i := s.fieldIndexLocked(id)
		if i < 0 {
			return false, ""
		}
		kind := s.doc.Fields[i].Kind
		s.doc.Fields = append(s.doc.Fields[:i:i], s.doc.Fields[i+1:]...)
		if s.selection == domain.FieldRef(id) {
			s.selection = domain.ElementRef{}
		}
		return true, "Remove " + describeKind(kind)
	})
}

func describeKind(k domain.FieldKind) string {
	switch k {
	case domain.KindText:
		return "text field"
	case domain.KindImage:
		return "image field"
	}
	return "field"
}

// Describe names an element for history descriptions.
func Describe(e domain.Element) string {
	switch e.Ref.Type {
	case domain.ElementField:
		if e.Field != nil {
			return describeKind(e.Field.Kind)
		}
		return "field"
	case domain.ElementTable:
		return "table"
	}
	return "element"
}
