/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	applog "letterforge/internal/log"
	"letterforge/internal/textlayout"
)

const (
	// EMUPerPx converts canvas pixels to English Metric Units.
	EMUPerPx = 9525
	// TwipsPerPx converts canvas pixels to twentieths of a point.
	TwipsPerPx = 15
)

// Block is one entry of a flow: a Paragraph, InlineImage or FlowTable.
type Block interface {
	flowBlock()
}

// Paragraph is one wrapped line of a text field.
type Paragraph struct {
	Text   string
	Bold   bool
	Italic bool
	Align  domain.Align
	// HalfPoints is the run size in half points.
	HalfPoints int
}

// InlineImage is an image run sized from the model, in EMU.
type InlineImage struct {
	DataURL   string
	WidthEMU  int64
	HeightEMU int64
	FieldID   int
}

// FlowCell is a table cell of a flow.
type FlowCell struct {
	Text string
	Bold bool
}

// FlowTable is a native table with one row per model row.
type FlowTable struct {
	Rows      [][]FlowCell
	Border    domain.BorderStyle
	ColTwips  int
	HeaderRow bool
}

func (Paragraph) flowBlock()   {}
func (InlineImage) flowBlock() {}
func (FlowTable) flowBlock()   {}

// Flow is the linear description of a document.
type Flow struct {
	Title       string
	PageWTwips  int
	PageHTwips  int
	MarginTwips int
	Blocks      []Block
}

// HalfPoints converts a font size in pixels into a DOCX run size.
func HalfPoints(px float64) int {
	if px <= 0 {
		px = DefaultFontSize
	}
	return int(math.Round(px * PxToPt * 2))
}

// ReadingOrder returns the elements of doc sorted top to bottom, then left to
// right. Elements sitting side by side come out one after the other.
func ReadingOrder(doc *domain.Document) []domain.Element {
	els := doc.Elements()
	sort.SliceStable(els, func(i, j int) bool {
		a, b := els[i].Rect, els[j].Rect
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return els
}

// BuildFlow converts doc into a linear flow in reading order.
func BuildFlow(doc domain.Document, page geometry.Page, p textlayout.Provider) Flow {
	page = page.Normalized()
	fl := Flow{
		Title:       doc.Title,
		PageWTwips:  int(math.Round(page.Width * TwipsPerPx)),
		PageHTwips:  int(math.Round(page.Height * TwipsPerPx)),
		MarginTwips: int(math.Round(page.SafeMargin * TwipsPerPx)),
	}
	for _, el := range ReadingOrder(&doc) {
		switch {
		case el.Field != nil && el.Field.Kind == domain.KindImage:
			f := el.Field
			fl.Blocks = append(fl.Blocks, InlineImage{
				DataURL:   f.DataURL,
				WidthEMU:  int64(math.Round(f.W * EMUPerPx)),
				HeightEMU: int64(math.Round(f.H * EMUPerPx)),
				FieldID:   f.ID,
			})
		case el.Field != nil:
			f := el.Field
			blk := textlayout.Wrap(p, f.Value, fontSpec(*f), f.W)
			for _, line := range blk.Lines {
				fl.Blocks = append(fl.Blocks, Paragraph{
					Text: line, Bold: f.Bold, Italic: f.Italic, Align: f.Align,
					HalfPoints: HalfPoints(f.FontSize),
				})
			}
		case el.Table != nil:
			t := el.Table
			cols := t.Columns()
			if cols == 0 {
				continue
			}
			ft := FlowTable{
				Border:    t.BorderStyle,
				ColTwips:  int(math.Round(t.W / float64(cols) * TwipsPerPx)),
				HeaderRow: t.HeaderRow,
			}
			for r, row := range t.Rows {
				cells := make([]FlowCell, len(row))
				for c, v := range row {
					cells[c] = FlowCell{Text: v, Bold: t.HeaderRow && r == 0}
				}
				ft.Rows = append(ft.Rows, cells)
			}
			fl.Blocks = append(fl.Blocks, ft)
		}
	}
	return fl
}

const (
	nsW      = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP     = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic    = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	relImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Default Extension="png" ContentType="image/png"/>
  <Default Extension="jpg" ContentType="image/jpeg"/>
  <Default Extension="gif" ContentType="image/gif"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>
`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>
`

type media struct {
	relID string
	name  string
	data  []byte
}

// RenderDOCX writes fl as a WordprocessingML package to w.
func RenderDOCX(w io.Writer, fl Flow) error {
	var body strings.Builder
	var images []media
	for n, b := range fl.Blocks {
		switch v := b.(type) {
		case Paragraph:
			writeParagraph(&body, v)
		case InlineImage:
			e, err := decodeDataURL(v.DataURL)
			if err != nil {
				return fmt.Errorf("image field %d: %w", v.FieldID, err)
			}
			m := media{
				relID: "rIdImg" + strconv.Itoa(len(images)+1),
				name:  fmt.Sprintf("image%d.%s", len(images)+1, e.ext()),
				data:  e.Data,
			}
			images = append(images, m)
			writeImage(&body, v, m, n+1)
		case FlowTable:
			writeTable(&body, v)
		}
	}

	zw := zip.NewWriter(w)
	files := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"docProps/core.xml", []byte(coreXML(fl.Title))},
		{"word/document.xml", []byte(documentXML(fl, body.String()))},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML(images))},
	}
	for _, m := range images {
		files = append(files, struct {
			name string
			data []byte
		}{"word/media/" + m.name, m.data})
	}
	for _, f := range files {
		if err := addZipFile(zw, f.name, f.data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize docx: %w", err)
	}
	return nil
}

func writeParagraph(b *strings.Builder, p Paragraph) {
	b.WriteString("<w:p><w:pPr><w:spacing w:before=\"0\" w:after=\"0\"/>")
	if jc := justification(p.Align); jc != "" {
		fmt.Fprintf(b, "<w:jc w:val=\"%s\"/>", jc)
	}
	b.WriteString("</w:pPr>")
	writeRun(b, p.Text, p.Bold, p.Italic, p.HalfPoints)
	b.WriteString("</w:p>")
}

func writeRun(b *strings.Builder, text string, bold, italic bool, halfPoints int) {
	b.WriteString("<w:r><w:rPr>")
	if bold {
		b.WriteString("<w:b/>")
	}
	if italic {
		b.WriteString("<w:i/>")
	}
	if halfPoints > 0 {
		fmt.Fprintf(b, "<w:sz w:val=\"%d\"/><w:szCs w:val=\"%d\"/>", halfPoints, halfPoints)
	}
	fmt.Fprintf(b, "</w:rPr><w:t xml:space=\"preserve\">%s</w:t></w:r>", xmlEsc(text))
}

func writeImage(b *strings.Builder, img InlineImage, m media, docPrID int) {
	fmt.Fprintf(b, `<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`+
		`<a:graphic><a:graphicData uri="%s"><pic:pic>`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		img.WidthEMU, img.HeightEMU, docPrID, docPrID, nsPic, docPrID, xmlEsc(m.name), m.relID, img.WidthEMU, img.HeightEMU)
}

func writeTable(b *strings.Builder, t FlowTable) {
	b.WriteString("<w:tbl><w:tblPr><w:tblW w:w=\"0\" w:type=\"auto\"/>")
	b.WriteString(tableBorders(t.Border))
	b.WriteString("</w:tblPr><w:tblGrid>")
	cols := 0
	if len(t.Rows) > 0 {
		cols = len(t.Rows[0])
	}
	for i := 0; i < cols; i++ {
		fmt.Fprintf(b, "<w:gridCol w:w=\"%d\"/>", t.ColTwips)
	}
	b.WriteString("</w:tblGrid>")
	for r, row := range t.Rows {
		b.WriteString("<w:tr>")
		if t.HeaderRow && r == 0 {
			b.WriteString("<w:trPr><w:tblHeader/></w:trPr>")
		}
		for _, c := range row {
			fmt.Fprintf(b, "<w:tc><w:tcPr><w:tcW w:w=\"%d\" w:type=\"dxa\"/></w:tcPr><w:p>", t.ColTwips)
			writeRun(b, c.Text, c.Bold, false, HalfPoints(TableFontSize))
			b.WriteString("</w:p></w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
}

func tableBorders(s domain.BorderStyle) string {
	var edges []string
	val, sz, col := "single", 4, "A0A0A0"
	switch s {
	case domain.BorderLight:
		edges = []string{"bottom", "insideH"}
	case domain.BorderFull:
		edges = []string{"top", "left", "bottom", "right", "insideH", "insideV"}
		sz, col = 6, "000000"
	default:
		edges = []string{"top", "left", "bottom", "right", "insideH", "insideV"}
		val, sz = "nil", 0
	}
	var b strings.Builder
	b.WriteString("<w:tblBorders>")
	for _, e := range edges {
		if val == "nil" {
			fmt.Fprintf(&b, "<w:%s w:val=\"nil\"/>", e)
			continue
		}
		fmt.Fprintf(&b, "<w:%s w:val=\"%s\" w:sz=\"%d\" w:space=\"0\" w:color=\"%s\"/>", e, val, sz, col)
	}
	b.WriteString("</w:tblBorders>")
	return b.String()
}

func justification(a domain.Align) string {
	switch a {
	case domain.AlignCenter:
		return "center"
	case domain.AlignRight:
		return "right"
	default:
		return ""
	}
}

func documentXML(fl Flow, body string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	fmt.Fprintf(&b, `<w:document xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s"><w:body>`, nsW, nsR, nsWP, nsA, nsPic)
	b.WriteString(body)
	fmt.Fprintf(&b, `<w:sectPr><w:pgSz w:w="%d" w:h="%d"/><w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="0" w:footer="0" w:gutter="0"/></w:sectPr>`,
		fl.PageWTwips, fl.PageHTwips, fl.MarginTwips, fl.MarginTwips, fl.MarginTwips, fl.MarginTwips)
	b.WriteString("</w:body></w:document>\n")
	return b.String()
}

func documentRelsXML(images []media) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n")
	for _, m := range images {
		fmt.Fprintf(&b, "  <Relationship Id=\"%s\" Type=\"%s\" Target=\"media/%s\"/>\n", m.relID, relImage, xmlEsc(m.name))
	}
	b.WriteString("</Relationships>\n")
	return b.String()
}

func coreXML(title string) string {
	now := time.Now().UTC().Format(time.RFC3339)
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		"<dc:title>" + xmlEsc(title) + "</dc:title><dc:creator>Letterforge</dc:creator>" +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + now + "</dcterms:created>" +
		"</cp:coreProperties>\n"
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	hdr.Modified = time.Now()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// xmlEsc escapes s for text and attribute values. Characters outside the
// XML 1.0 Char range, such as form feeds from extracted PDF text, become
// U+FFFD.
func xmlEsc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ExportDOCX builds the flow of doc and writes it to outPath.
func ExportDOCX(doc domain.Document, page geometry.Page, p textlayout.Provider, outPath string) error {
	l := applog.WithOperation(applog.WithComponent("export"), "docx")
	fl := BuildFlow(doc, page, p)
	var buf bytes.Buffer
	if err := RenderDOCX(&buf, fl); err != nil {
		l.Error("export failed", "doc", doc.ID, "err", err)
		return fmt.Errorf("export docx: %w", err)
	}
	if err := writeFile(outPath, buf.Bytes()); err != nil {
		return err
	}
	l.Info("exported", "path", outPath, "blocks", len(fl.Blocks), "bytes", buf.Len())
	return nil
}
