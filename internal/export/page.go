/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"golang.org/x/image/font"
	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	"letterforge/internal/textlayout"
)

// PxToPt converts canvas pixels to PDF points.
const PxToPt = 0.75

const (
	// DefaultFontSize applies to text fields stored without a size.
	DefaultFontSize = 14.0
	// TableFontSize is the cell text size in pixels.
	TableFontSize = 12.0
)

// Item is one absolutely positioned piece of a page description.
// It is one of TextRun, ImagePlacement or GridPlacement.
type Item interface {
	Bounds() geometry.Rect
}

// TextRun is a single wrapped line of a text field, in points.
type TextRun struct {
	X, Y, W, H float64
	// BoxX and BoxW span the field, so renderers with other glyph widths
	// can realign the line themselves.
	BoxX, BoxW float64
	Text       string
	SizePt     float64
	Bold       bool
	Italic     bool
	Align      domain.Align
}

func (r TextRun) Bounds() geometry.Rect { return geometry.R(r.X, r.Y, r.W, r.H) }

// ImagePlacement places an embedded image at the model size, in points.
type ImagePlacement struct {
	X, Y, W, H float64
	DataURL    string
	FieldID    int
}

func (p ImagePlacement) Bounds() geometry.Rect { return geometry.R(p.X, p.Y, p.W, p.H) }

// GridPlacement is a table laid out as equal rows and columns, in points.
type GridPlacement struct {
	X, Y, W, H float64
	Rows       [][]string
	HeaderRow  bool
	// Border is a gofpdf cell border string: "", "B" or "1".
	Border string
	SizePt float64
}

func (g GridPlacement) Bounds() geometry.Rect { return geometry.R(g.X, g.Y, g.W, g.H) }

// RowHeight is the height of one grid row.
func (g GridPlacement) RowHeight() float64 {
	if len(g.Rows) == 0 {
		return 0
	}
	return g.H / float64(len(g.Rows))
}

// ColWidth is the width of one grid column.
func (g GridPlacement) ColWidth() float64 {
	if len(g.Rows) == 0 || len(g.Rows[0]) == 0 {
		return 0
	}
	return g.W / float64(len(g.Rows[0]))
}

// PageDescription is the single fixed-size page of a document in points.
type PageDescription struct {
	Title    string
	WidthPt  float64
	HeightPt float64
	MarginPt float64
	Items    []Item
}

// BorderString maps a table border style onto gofpdf's cell border syntax.
func BorderString(s domain.BorderStyle) string {
	switch s {
	case domain.BorderLight:
		return "B"
	case domain.BorderFull:
		return "1"
	default:
		return ""
	}
}

func fontSpec(f domain.Field) textlayout.FontSpec {
	size := f.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}
	spec := textlayout.FontSpec{Size: size, Italic: f.Italic, Weight: 400}
	if f.Bold {
		spec.Weight = 700
	}
	return spec
}

// BuildPage places every element of doc at its model position on one page.
// Items follow the paint order of the document: fields first, then tables.
func BuildPage(doc domain.Document, page geometry.Page, p textlayout.Provider) PageDescription {
	page = page.Normalized()
	desc := PageDescription{
		Title:    doc.Title,
		WidthPt:  page.Width * PxToPt,
		HeightPt: page.Height * PxToPt,
		MarginPt: page.SafeMargin * PxToPt,
	}
	for _, el := range doc.Elements() {
		switch {
		case el.Field != nil && el.Field.Kind == domain.KindImage:
			f := el.Field
			desc.Items = append(desc.Items, ImagePlacement{
				X: f.X * PxToPt, Y: f.Y * PxToPt, W: f.W * PxToPt, H: f.H * PxToPt,
				DataURL: f.DataURL, FieldID: f.ID,
			})
		case el.Field != nil:
			desc.Items = append(desc.Items, textRuns(*el.Field, p)...)
		case el.Table != nil:
			t := el.Table
			if len(t.Rows) == 0 {
				continue
			}
			desc.Items = append(desc.Items, GridPlacement{
				X: t.X * PxToPt, Y: t.Y * PxToPt, W: t.W * PxToPt, H: t.H * PxToPt,
				Rows:      domain.CloneRows(t.Rows),
				HeaderRow: t.HeaderRow,
				Border:    BorderString(t.BorderStyle),
				SizePt:    TableFontSize * PxToPt,
			})
		}
	}
	return desc
}

func textRuns(f domain.Field, p textlayout.Provider) []Item {
	spec := fontSpec(f)
	blk := textlayout.Wrap(p, f.Value, spec, f.W)
	face, _ := resolve(p, spec)
	out := make([]Item, 0, len(blk.Lines))
	for i, line := range blk.Lines {
		w := textlayout.MeasureString(face, line)
		x := f.X + textlayout.AlignOffset(string(f.Align), w, f.W)
		y := f.Y + float64(i)*blk.LineHeight
		out = append(out, TextRun{
			X: x * PxToPt, Y: y * PxToPt, W: w * PxToPt, H: blk.LineHeight * PxToPt,
			BoxX: f.X * PxToPt, BoxW: f.W * PxToPt,
			Text:   line,
			SizePt: spec.Size * PxToPt,
			Bold:   f.Bold,
			Italic: f.Italic,
			Align:  f.Align,
		})
	}
	return out
}

func resolve(p textlayout.Provider, spec textlayout.FontSpec) (font.Face, textlayout.Metrics) {
	if p == nil {
		p = textlayout.BasicProvider{}
	}
	return p.Resolve(spec)
}
