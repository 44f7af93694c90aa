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
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	"letterforge/internal/textlayout"
)

func TestRasterize_PaintsImagesAndBorders(t *testing.T) {
	img, err := Rasterize(sampleDoc(t), geometry.DefaultPage(), textlayout.BasicProvider{}, PNGOptions{})
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 794 || b.Dy() != 1123 {
		t.Fatalf("size = %v", b)
	}
	if c := img.RGBAAt(125, 125); c.R < 200 || c.G > 50 {
		t.Fatalf("image pixel = %v", c)
	}
	if c := img.RGBAAt(5, 5); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("background = %v", c)
	}
	// full border: top-left corner of the table
	if c := img.RGBAAt(40, 500); c != borderFull {
		t.Fatalf("border pixel = %v", c)
	}
}

func TestRasterize_ScaleAndGuides(t *testing.T) {
	img, err := Rasterize(domain.Document{}, geometry.DefaultPage(), nil, PNGOptions{Scale: 0.5, Guides: true})
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 397 || b.Dy() != 562 {
		t.Fatalf("size = %v", b)
	}
	if c := img.RGBAAt(20, 20); c != guideColor {
		t.Fatalf("guide pixel = %v", c)
	}
}

func TestRasterize_BadImage(t *testing.T) {
	doc := domain.Document{Fields: []domain.Field{{ID: 4, Kind: domain.KindImage, X: 40, Y: 40, W: 80, H: 80, DataURL: "data:image/png;base64,!!"}}}
	if _, err := Rasterize(doc, geometry.DefaultPage(), nil, PNGOptions{}); !errors.Is(err, ErrBadImage) {
		t.Fatalf("want ErrBadImage, got %v", err)
	}
}

func TestThumbnail(t *testing.T) {
	b, err := Thumbnail(sampleDoc(t), geometry.DefaultPage(), textlayout.BasicProvider{}, 200)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 200 {
		t.Fatalf("width = %d", cfg.Width)
	}
}

func TestExportPNG_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "page.png")
	if err := ExportPNG(sampleDoc(t), geometry.DefaultPage(), nil, out, PNGOptions{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Fatalf("png missing: %v", err)
	}
}
