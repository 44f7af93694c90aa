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
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"letterforge/internal/domain"
)

// pngDataURL returns a w×h solid image as a data URL.
func pngDataURL(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func sampleDoc(t *testing.T) domain.Document {
	t.Helper()
	return domain.Document{
		ID:    "doc-1",
		Title: "Offer & Terms",
		Fields: []domain.Field{
			{ID: 1, Kind: domain.KindText, X: 60, Y: 300, W: 240, H: 40, Value: "Tom & Jerry", FontSize: 14, Bold: true},
			{ID: 2, Kind: domain.KindImage, X: 100, Y: 100, W: 50, H: 50, DataURL: pngDataURL(t, 4, 4, color.RGBA{R: 255, A: 255})},
		},
		Tables: []domain.Table{
			{ID: 3, X: 40, Y: 500, W: 400, H: 96, Rows: [][]string{{"Item", "Qty"}, {"Pen", "2"}, {"Ink", "1"}}, HeaderRow: true, BorderStyle: domain.BorderFull},
		},
	}
}
