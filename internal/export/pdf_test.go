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
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	"letterforge/internal/textlayout"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuildPage_SizeAndMargins(t *testing.T) {
	desc := BuildPage(domain.Document{}, geometry.DefaultPage(), textlayout.BasicProvider{})
	if !almost(desc.WidthPt, 595.5) || !almost(desc.HeightPt, 842.25) {
		t.Fatalf("page = %vx%v pt", desc.WidthPt, desc.HeightPt)
	}
	if !almost(desc.MarginPt, 30) {
		t.Fatalf("margin = %v", desc.MarginPt)
	}
	if len(desc.Items) != 0 {
		t.Fatalf("empty doc produced %d items", len(desc.Items))
	}
}

func TestBuildPage_TextRunPerWrappedLine(t *testing.T) {
	doc := domain.Document{Fields: []domain.Field{
		{ID: 1, Kind: domain.KindText, X: 40, Y: 40, W: 80, H: 60, Value: "aaaa bbbb cccc", FontSize: 14, Italic: true},
	}}
	desc := BuildPage(doc, geometry.DefaultPage(), textlayout.BasicProvider{})
	if len(desc.Items) != 2 {
		t.Fatalf("want 2 runs, got %d", len(desc.Items))
	}
	first, ok := desc.Items[0].(TextRun)
	if !ok {
		t.Fatalf("item 0 is %T", desc.Items[0])
	}
	second := desc.Items[1].(TextRun)
	if first.Text != "aaaa bbbb" || second.Text != "cccc" {
		t.Fatalf("lines = %q, %q", first.Text, second.Text)
	}
	if !almost(first.X, 30) || !almost(first.Y, 30) {
		t.Fatalf("first run at %v,%v", first.X, first.Y)
	}
	if !almost(second.Y-first.Y, 13*PxToPt) {
		t.Fatalf("line step = %v", second.Y-first.Y)
	}
	if !almost(first.SizePt, 10.5) || !first.Italic || first.Bold {
		t.Fatalf("style = %+v", first)
	}
}

func TestBuildPage_AlignmentOffsetsRun(t *testing.T) {
	doc := domain.Document{Fields: []domain.Field{
		{ID: 1, Kind: domain.KindText, X: 40, Y: 40, W: 240, H: 40, Value: "Hello world", Align: domain.AlignCenter},
	}}
	run := BuildPage(doc, geometry.DefaultPage(), textlayout.BasicProvider{}).Items[0].(TextRun)
	want := (40 + (240-77)/2.0) * PxToPt
	if !almost(run.X, want) {
		t.Fatalf("x = %v, want %v", run.X, want)
	}
	if !almost(run.BoxX, 30) || !almost(run.BoxW, 180) {
		t.Fatalf("box = %v,%v", run.BoxX, run.BoxW)
	}
}

func TestBuildPage_ImagesAndGrids(t *testing.T) {
	doc := sampleDoc(t)
	desc := BuildPage(doc, geometry.DefaultPage(), textlayout.BasicProvider{})
	var img *ImagePlacement
	var grid *GridPlacement
	for _, it := range desc.Items {
		switch v := it.(type) {
		case ImagePlacement:
			img = &v
		case GridPlacement:
			grid = &v
		}
	}
	if img == nil || grid == nil {
		t.Fatalf("missing placements: %#v", desc.Items)
	}
	if !almost(img.W, 37.5) || !almost(img.H, 37.5) || img.FieldID != 2 {
		t.Fatalf("image = %+v", *img)
	}
	if grid.Border != "1" || !grid.HeaderRow || len(grid.Rows) != 3 {
		t.Fatalf("grid = %+v", *grid)
	}
	if !almost(grid.RowHeight(), 24) || !almost(grid.ColWidth(), 150) {
		t.Fatalf("cell = %vx%v", grid.ColWidth(), grid.RowHeight())
	}
	// tables are painted after fields
	if _, ok := desc.Items[len(desc.Items)-1].(GridPlacement); !ok {
		t.Fatalf("last item is %T", desc.Items[len(desc.Items)-1])
	}
}

func TestBorderString(t *testing.T) {
	cases := map[domain.BorderStyle]string{
		domain.BorderNone:  "",
		domain.BorderLight: "B",
		domain.BorderFull:  "1",
		"":                 "",
	}
	for in, want := range cases {
		if got := BorderString(in); got != want {
			t.Fatalf("BorderString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderPDF_WritesDocument(t *testing.T) {
	p, err := textlayout.NewGoProvider()
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	desc := BuildPage(sampleDoc(t), geometry.DefaultPage(), p)
	for _, opt := range []PDFOptions{{}, {CoreFonts: true}} {
		var buf bytes.Buffer
		if err := RenderPDF(&buf, desc, opt); err != nil {
			t.Fatalf("render (%+v): %v", opt, err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
			t.Fatalf("not a pdf: %q", buf.Bytes()[:8])
		}
	}
}

func TestExportPDF_BadImageLeavesDocumentUntouched(t *testing.T) {
	doc := sampleDoc(t)
	doc.Fields[1].DataURL = "data:image/png;base64,bm90IGFuIGltYWdl"
	before := doc.Clone()
	out := filepath.Join(t.TempDir(), "bad.pdf")
	err := ExportPDF(doc, geometry.DefaultPage(), textlayout.BasicProvider{}, out, PDFOptions{CoreFonts: true})
	if !errors.Is(err, ErrBadImage) {
		t.Fatalf("want ErrBadImage, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("partial file written")
	}
	if doc.Fields[1].DataURL != before.Fields[1].DataURL || len(doc.Tables[0].Rows) != 3 {
		t.Fatalf("document modified")
	}
}

func TestExportPDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "offer.pdf")
	if err := ExportPDF(sampleDoc(t), geometry.DefaultPage(), textlayout.BasicProvider{}, out, PDFOptions{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() <= 0 {
		t.Fatalf("pdf file empty")
	}
}
