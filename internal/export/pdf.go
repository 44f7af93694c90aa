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
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	applog "letterforge/internal/log"
	"letterforge/internal/textlayout"
)

// PDFOptions controls PDF rendering.
//
// By default the Go fonts are embedded so the PDF glyph widths match the
// wrapping done with textlayout.NewGoProvider. CoreFonts switches to the
// built-in Helvetica, which keeps files small but only covers cp1252.
type PDFOptions struct {
	CoreFonts bool
	Author    string
}

var (
	borderLight = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	borderFull  = color.RGBA{A: 255}
	textColor   = color.RGBA{R: 17, G: 17, B: 17, A: 255}
)

// RenderPDF writes desc as a single page PDF to w.
func RenderPDF(w io.Writer, desc PageDescription, opt PDFOptions) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: desc.WidthPt, Ht: desc.HeightPt},
	})
	pdf.SetMargins(desc.MarginPt, desc.MarginPt, desc.MarginPt)
	pdf.SetAutoPageBreak(false, 0)
	if desc.Title != "" {
		pdf.SetTitle(desc.Title, true)
	}
	author := opt.Author
	if author == "" {
		author = "Letterforge"
	}
	pdf.SetAuthor(author, true)

	family := "Go"
	tr := func(s string) string { return s }
	if opt.CoreFonts {
		family = "Helvetica"
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	} else {
		pdf.AddUTF8FontFromBytes(family, "", goregular.TTF)
		pdf.AddUTF8FontFromBytes(family, "B", gobold.TTF)
		pdf.AddUTF8FontFromBytes(family, "I", goitalic.TTF)
		pdf.AddUTF8FontFromBytes(family, "BI", gobolditalic.TTF)
	}
	pdf.AddPage()
	setTextColor(pdf, textColor)

	for n, it := range desc.Items {
		switch v := it.(type) {
		case TextRun:
			pdf.SetFont(family, fontStyle(v.Bold, v.Italic), v.SizePt)
			pdf.SetCellMargin(0)
			pdf.SetXY(v.BoxX, v.Y)
			pdf.CellFormat(v.BoxW, v.H, tr(v.Text), "", 0, alignString(v.Align)+"M", false, 0, "")
		case ImagePlacement:
			if err := placeImage(pdf, n, v); err != nil {
				return err
			}
		case GridPlacement:
			drawGrid(pdf, family, tr, v)
		}
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("render pdf item %d: %w", n, err)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func placeImage(pdf *gofpdf.Fpdf, n int, v ImagePlacement) error {
	e, err := decodeDataURL(v.DataURL)
	if err != nil {
		return fmt.Errorf("image field %d: %w", v.FieldID, err)
	}
	name := "img" + strconv.Itoa(n)
	opts := gofpdf.ImageOptions{ImageType: e.gofpdfType()}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(e.Data))
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("image field %d: %w: %v", v.FieldID, ErrBadImage, err)
	}
	pdf.ImageOptions(name, v.X, v.Y, v.W, v.H, false, opts, 0, "")
	return nil
}

func drawGrid(pdf *gofpdf.Fpdf, family string, tr func(string) string, g GridPlacement) {
	rh, cw := g.RowHeight(), g.ColWidth()
	switch g.Border {
	case "B":
		setDrawColor(pdf, borderLight)
		pdf.SetLineWidth(0.5)
	case "1":
		setDrawColor(pdf, borderFull)
		pdf.SetLineWidth(0.75)
	}
	pdf.SetCellMargin(3)
	for r, row := range g.Rows {
		style := ""
		if g.HeaderRow && r == 0 {
			style = "B"
		}
		pdf.SetFont(family, style, g.SizePt)
		for c, cell := range row {
			pdf.SetXY(g.X+float64(c)*cw, g.Y+float64(r)*rh)
			pdf.CellFormat(cw, rh, tr(cell), g.Border, 0, "LM", false, 0, "")
		}
	}
}

func fontStyle(bold, italic bool) string {
	s := ""
	if bold {
		s += "B"
	}
	if italic {
		s += "I"
	}
	return s
}

func alignString(a domain.Align) string {
	switch a {
	case domain.AlignCenter:
		return "C"
	case domain.AlignRight:
		return "R"
	default:
		return "L"
	}
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setTextColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}

// ExportPDF builds the page description of doc and writes it to outPath.
func ExportPDF(doc domain.Document, page geometry.Page, p textlayout.Provider, outPath string, opt PDFOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "pdf")
	desc := BuildPage(doc, page, p)
	var buf bytes.Buffer
	if err := RenderPDF(&buf, desc, opt); err != nil {
		l.Error("export failed", "doc", doc.ID, "err", err)
		return fmt.Errorf("export pdf: %w", err)
	}
	if err := writeFile(outPath, buf.Bytes()); err != nil {
		return err
	}
	l.Info("exported", "path", outPath, "items", len(desc.Items), "bytes", buf.Len())
	return nil
}

func writeFile(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outPath), err)
	}
	return nil
}
