/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	applog "letterforge/internal/log"
	"letterforge/internal/textlayout"
)

// PNGOptions controls page rasterization.
// Scale multiplies canvas pixels; zero means 1. Guides draws the safe margin.
type PNGOptions struct {
	Scale  float64
	Guides bool
}

var (
	white      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	guideColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Rasterize paints doc onto a white page. Images that fail to decode are
// reported with ErrBadImage.
func Rasterize(doc domain.Document, page geometry.Page, p textlayout.Provider, opt PNGOptions) (*image.RGBA, error) {
	page = page.Normalized()
	s := opt.Scale
	if s <= 0 {
		s = 1
	}
	if p == nil {
		p = textlayout.BasicProvider{}
	}
	pixW := int(math.Round(page.Width * s))
	pixH := int(math.Round(page.Height * s))
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)

	if opt.Guides {
		m := page.Placeable()
		strokeRect(img, scaleRect(m, s), guideColor)
	}
	for _, el := range doc.Elements() {
		switch {
		case el.Field != nil && el.Field.Kind == domain.KindImage:
			src, err := decodeImage(el.Field.DataURL)
			if err != nil {
				return nil, fmt.Errorf("image field %d: %w", el.Field.ID, err)
			}
			draw.CatmullRom.Scale(img, scaleRect(el.Rect, s), src, src.Bounds(), draw.Over, nil)
		case el.Field != nil:
			paintText(img, *el.Field, p, s)
		case el.Table != nil:
			paintTable(img, *el.Table, p, s)
		}
	}
	return img, nil
}

func scaleRect(r geometry.Rect, s float64) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X*s)), int(math.Round(r.Y*s)),
		int(math.Round((r.X+r.W)*s)), int(math.Round((r.Y+r.H)*s)),
	)
}

func paintText(img *image.RGBA, f domain.Field, p textlayout.Provider, s float64) {
	spec := fontSpec(f)
	blk := textlayout.Wrap(p, f.Value, spec, f.W)
	scaled := spec
	scaled.Size = spec.Size * s
	face, m := p.Resolve(scaled)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: face}
	for i, line := range blk.Lines {
		w := textlayout.MeasureString(face, line)
		x := f.X*s + textlayout.AlignOffset(string(f.Align), w, f.W*s)
		y := (f.Y+float64(i)*blk.LineHeight)*s + m.Ascent
		d.Dot = fixed.P(int(math.Round(x)), int(math.Round(y)))
		d.DrawString(line)
	}
}

func paintTable(img *image.RGBA, t domain.Table, p textlayout.Provider, s float64) {
	rows, cols := len(t.Rows), t.Columns()
	if rows == 0 || cols == 0 {
		return
	}
	rh, cw := t.H/float64(rows), t.W/float64(cols)
	for r, row := range t.Rows {
		spec := textlayout.FontSpec{Size: TableFontSize * s, Weight: 400}
		if t.HeaderRow && r == 0 {
			spec.Weight = 700
		}
		face, m := p.Resolve(spec)
		d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: face}
		for c, cell := range row {
			cr := geometry.R(t.X+float64(c)*cw, t.Y+float64(r)*rh, cw, rh)
			px := scaleRect(cr, s)
			switch t.BorderStyle {
			case domain.BorderFull:
				strokeRect(img, px, borderFull)
			case domain.BorderLight:
				hline(img, px.Min.X, px.Max.X-1, px.Max.Y-1, borderLight)
			}
			lh := m.Ascent + m.Descent
			y := float64(px.Min.Y) + (float64(px.Dy())-lh)/2 + m.Ascent
			d.Dot = fixed.P(px.Min.X+int(math.Round(4*s)), int(math.Round(y)))
			d.DrawString(cell)
		}
	}
}

// strokeRect draws a 1px border just inside r.
func strokeRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	if r.Empty() {
		return
	}
	hline(img, r.Min.X, r.Max.X-1, r.Min.Y, col)
	hline(img, r.Min.X, r.Max.X-1, r.Max.Y-1, col)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, col)
		img.SetRGBA(r.Max.X-1, y, col)
	}
}

func hline(img *image.RGBA, x0, x1, y int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, col)
	}
}

// RenderPNG rasterizes doc and encodes it as PNG to w.
func RenderPNG(w io.Writer, doc domain.Document, page geometry.Page, p textlayout.Provider, opt PNGOptions) error {
	img, err := Rasterize(doc, page, p, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Thumbnail renders doc scaled to maxW pixels wide.
func Thumbnail(doc domain.Document, page geometry.Page, p textlayout.Provider, maxW int) ([]byte, error) {
	page = page.Normalized()
	if maxW <= 0 {
		maxW = 256
	}
	var buf bytes.Buffer
	if err := RenderPNG(&buf, doc, page, p, PNGOptions{Scale: float64(maxW) / page.Width}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportPNG rasterizes doc and writes it to outPath.
func ExportPNG(doc domain.Document, page geometry.Page, p textlayout.Provider, outPath string, opt PNGOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "png")
	var buf bytes.Buffer
	if err := RenderPNG(&buf, doc, page, p, opt); err != nil {
		l.Error("export failed", "doc", doc.ID, "err", err)
		return fmt.Errorf("export png: %w", err)
	}
	if err := writeFile(outPath, buf.Bytes()); err != nil {
		return err
	}
	l.Info("exported", "path", outPath, "bytes", buf.Len())
	return nil
}
