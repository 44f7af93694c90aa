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
	"math"
	"strings"
	"unicode/utf8"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
)

// ImportParsedContent appends ingested text blocks and tables below the
// existing content, one element per block, and commits a single history
// entry for the batch. When an element would run past the bottom of the safe
// area, placement wraps back to its top. Blank blocks and empty tables are
// skipped. It returns the refs of the created elements.
func (s *Store) ImportParsedContent(textBlocks []string, tables [][][]string) []domain.ElementRef {
	var refs []domain.ElementRef
	s.apply(func() (bool, string) {
		area := s.page.Placeable()
		y := s.nextSlotLocked()
		place := func(h float64) geometry.Rect {
			if y+h > area.Bottom() {
				y = area.Y
			}
			r := geometry.SanitizeRect(geometry.R(area.X, y, area.W, h), s.page)
			y = r.Bottom() + ImportSpacing
			return r
		}
		for _, block := range textBlocks {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			f := domain.Field{
				ID:       s.allocID(),
				Kind:     domain.KindText,
				Value:    block,
				FontSize: DefaultFontSize,
				Align:    domain.AlignLeft,
			}
			f.SetRect(place(EstimateTextHeight(block)))
			s.doc.Fields = append(s.doc.Fields, f)
			refs = append(refs, domain.FieldRef(f.ID))
		}
		for _, grid := range tables {
			rows := domain.NormalizeRows(grid)
			if rows == nil {
				continue
			}
			t := domain.Table{ID: s.allocID(), Rows: rows, HeaderRow: true, BorderStyle: domain.BorderLight}
			t.SetRect(place(tableHeight(len(rows))))
			s.doc.Tables = append(s.doc.Tables, t)
			refs = append(refs, domain.TableRef(t.ID))
		}
		if len(refs) == 0 {
			return false, ""
		}
		s.log.Info("imported content", slog.Int("blocks", len(textBlocks)), slog.Int("tables", len(tables)), slog.Int("elements", len(refs)))
		return true, "Import content"
	})
	return refs
}

// nextSlotLocked is the y below the lowest element plus spacing, or the
// first import offset on an empty page.
func (s *Store) nextSlotLocked() float64 {
	if len(s.doc.Fields) == 0 && len(s.doc.Tables) == 0 {
		return s.page.SafeMargin + ImportFirstOffset
	}
	bottom := 0.0
	for _, e := range s.doc.Elements() {
		bottom = max(bottom, e.Rect.Bottom())
	}
	return bottom + ImportSpacing
}

// EstimateTextHeight guesses the box height of an imported paragraph from
// its length, bounded to [ImportMinTextH, ImportMaxTextH].
func EstimateTextHeight(text string) float64 {
	lines := math.Ceil(float64(utf8.RuneCountInString(text)) / importCharsPerLine)
	return geometry.Clamp(lines*importLineHeight+importLineHeight, ImportMinTextH, ImportMaxTextH)
}
