/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"os"
	"path/filepath"
	"testing"

	"letterforge/internal/geometry"
	"letterforge/internal/textlayout"
)

func TestBatchExport_Presets(t *testing.T) {
	cases := []struct {
		preset PresetName
		want   string
	}{
		{PresetPrint, filepath.Join("print", "Offer-Terms.pdf")},
		{PresetOffice, filepath.Join("office", "Offer-Terms.docx")},
		{PresetWeb, filepath.Join("web", "Offer-Terms.png")},
	}
	for _, tc := range cases {
		root := t.TempDir()
		written, err := BatchExport(sampleDoc(t), BatchOptions{
			Preset: tc.preset, OutDir: root, Page: geometry.DefaultPage(), Provider: textlayout.BasicProvider{},
		})
		if err != nil {
			t.Fatalf("batch %s: %v", tc.preset, err)
		}
		want := filepath.Join(root, tc.want)
		if len(written) != 1 || written[0] != want {
			t.Fatalf("written = %v, want %s", written, want)
		}
		st, err := os.Stat(want)
		if err != nil {
			t.Fatalf("missing %s: %v", want, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", want)
		}
	}
}

func TestBatchExport_UnknownFormat(t *testing.T) {
	_, err := BatchExport(sampleDoc(t), BatchOptions{OutDir: t.TempDir(), Formats: []string{"tiff"}})
	if err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"Q3 Report: Final!": "Q3-Report-Final.pdf",
		"   ":               "document.pdf",
		"Invoice_2025":      "Invoice_2025.pdf",
		"Über  Brief":       "Über-Brief.pdf",
	}
	for in, want := range cases {
		if got := FileName(in, "pdf"); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := FileName("a", ""); got != "a" {
		t.Fatalf("no ext = %q", got)
	}
}
