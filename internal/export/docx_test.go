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
	"errors"
	"io"
	"strings"
	"testing"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	"letterforge/internal/textlayout"
)

func TestReadingOrder_SortsByYThenX(t *testing.T) {
	doc := domain.Document{
		Fields: []domain.Field{
			{ID: 1, Kind: domain.KindText, X: 300, Y: 200, W: 100, H: 40},
			{ID: 2, Kind: domain.KindText, X: 40, Y: 200, W: 100, H: 40},
		},
		Tables: []domain.Table{{ID: 3, X: 500, Y: 100, W: 100, H: 64, Rows: [][]string{{"a"}}}},
	}
	els := ReadingOrder(&doc)
	got := []int{els[0].Ref.ID, els[1].Ref.ID, els[2].Ref.ID}
	if got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("order = %v", got)
	}
}

func TestBuildFlow_Blocks(t *testing.T) {
	doc := sampleDoc(t)
	fl := BuildFlow(doc, geometry.DefaultPage(), textlayout.BasicProvider{})
	if fl.PageWTwips != 794*15 || fl.MarginTwips != 600 {
		t.Fatalf("page = %d margin = %d", fl.PageWTwips, fl.MarginTwips)
	}
	if len(fl.Blocks) != 3 {
		t.Fatalf("want 3 blocks, got %d", len(fl.Blocks))
	}
	img, ok := fl.Blocks[0].(InlineImage)
	if !ok {
		t.Fatalf("block 0 is %T", fl.Blocks[0])
	}
	if img.WidthEMU != 50*EMUPerPx || img.HeightEMU != 50*EMUPerPx {
		t.Fatalf("image extent = %dx%d", img.WidthEMU, img.HeightEMU)
	}
	para := fl.Blocks[1].(Paragraph)
	if para.Text != "Tom & Jerry" || !para.Bold || para.HalfPoints != 21 {
		t.Fatalf("paragraph = %+v", para)
	}
	tbl := fl.Blocks[2].(FlowTable)
	if len(tbl.Rows) != 3 || !tbl.Rows[0][0].Bold || tbl.Rows[1][0].Bold {
		t.Fatalf("table = %+v", tbl)
	}
	if tbl.ColTwips != 200*15 {
		t.Fatalf("col width = %d", tbl.ColTwips)
	}
}

func TestHalfPoints(t *testing.T) {
	for px, want := range map[float64]int{14: 21, 12: 18, 16: 24, 0: 21} {
		if got := HalfPoints(px); got != want {
			t.Fatalf("HalfPoints(%v) = %d, want %d", px, got, want)
		}
	}
}

func readZip(t *testing.T, b []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestRenderDOCX_Package(t *testing.T) {
	fl := BuildFlow(sampleDoc(t), geometry.DefaultPage(), textlayout.BasicProvider{})
	var buf bytes.Buffer
	if err := RenderDOCX(&buf, fl); err != nil {
		t.Fatalf("render: %v", err)
	}
	files := readZip(t, buf.Bytes())
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/_rels/document.xml.rels", "word/media/image1.png", "docProps/core.xml"} {
		if _, ok := files[name]; !ok {
			t.Fatalf("missing part %s", name)
		}
	}
	doc := files["word/document.xml"]
	for _, want := range []string{"Tom &amp; Jerry", "<w:b/>", `<w:sz w:val="21"/>`, `r:embed="rIdImg1"`, "<w:tbl>", "<w:tblHeader/>", `cx="476250"`} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document.xml missing %q", want)
		}
	}
	if !strings.Contains(files["docProps/core.xml"], "Offer &amp; Terms") {
		t.Fatalf("title not escaped in core.xml")
	}
	if !strings.Contains(files["word/_rels/document.xml.rels"], `Target="media/image1.png"`) {
		t.Fatalf("image relationship missing")
	}
}

func TestRenderDOCX_BadImage(t *testing.T) {
	fl := Flow{Blocks: []Block{InlineImage{DataURL: "not-a-data-url", WidthEMU: 1, HeightEMU: 1, FieldID: 9}}}
	err := RenderDOCX(io.Discard, fl)
	if !errors.Is(err, ErrBadImage) {
		t.Fatalf("want ErrBadImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "image field 9") {
		t.Fatalf("error lacks field id: %v", err)
	}
}

func TestXMLEsc(t *testing.T) {
	if got := xmlEsc(`a<b>&"c'`); got != "a&lt;b&gt;&amp;&#34;c&#39;" {
		t.Fatalf("xmlEsc = %q", got)
	}
}

func TestRenderDOCX_ControlCharactersStayWellFormed(t *testing.T) {
	doc := domain.Document{
		Title: "Offer\x01",
		Fields: []domain.Field{
			{ID: 1, Kind: domain.KindText, X: 40, Y: 40, W: 300, H: 40, Value: "page\x0cbreak"},
		},
		Tables: []domain.Table{{
			ID: 2, X: 40, Y: 120, W: 200, H: 64, BorderStyle: domain.BorderLight,
			Rows: [][]string{{"a\x0cb", "c"}, {"d\x01", "e\x1b"}},
		}},
	}
	fl := BuildFlow(doc, geometry.DefaultPage(), textlayout.BasicProvider{})
	var buf bytes.Buffer
	if err := RenderDOCX(&buf, fl); err != nil {
		t.Fatalf("render: %v", err)
	}
	files := readZip(t, buf.Bytes())
	for _, part := range []string{"word/document.xml", "docProps/core.xml"} {
		dec := xml.NewDecoder(strings.NewReader(files[part]))
		for {
			_, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("%s is not well-formed: %v", part, err)
			}
		}
	}
	if !strings.Contains(files["word/document.xml"], "a\uFFFDb") {
		t.Fatalf("control character not replaced in table cell")
	}
}
