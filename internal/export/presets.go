/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	applog "letterforge/internal/log"
	"letterforge/internal/textlayout"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetPrint  PresetName = "print"
	PresetOffice PresetName = "office"
	PresetWeb    PresetName = "web"
)

// BatchOptions controls a batch export of one document.
//
// Files are written to OutDir/<preset>/<title>.<ext>. Formats overrides the
// preset defaults; allowed values are pdf, docx and png.
type BatchOptions struct {
	Preset   PresetName
	Formats  []string
	OutDir   string
	Page     geometry.Page
	Provider textlayout.Provider
	// Scale applies to png output; zero uses the preset default.
	Scale float64
}

// BatchExport renders doc in every format of the preset and returns the
// written paths.
func BatchExport(doc domain.Document, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = PresetFormats(opt.Preset)
	}
	preset := opt.Preset
	if preset == "" {
		preset = PresetPrint
	}
	if opt.Page == (geometry.Page{}) {
		opt.Page = geometry.DefaultPage()
	}
	p := opt.Provider
	if p == nil {
		p = textlayout.ProviderFor("")
	}
	base := filepath.Join(opt.OutDir, string(preset))
	l := applog.WithOperation(applog.WithComponent("export"), "batch")

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(base, FileName(doc.Title, f))
		var err error
		switch f {
		case "pdf":
			err = ExportPDF(doc, opt.Page, p, out, PDFOptions{})
		case "docx":
			err = ExportDOCX(doc, opt.Page, p, out)
		case "png":
			scale := opt.Scale
			if scale <= 0 {
				scale = presetScale(preset)
			}
			err = ExportPNG(doc, opt.Page, p, out, PNGOptions{Scale: scale, Guides: preset == PresetPrint})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	l.Info("batch done", "preset", preset, "files", len(written))
	return written, nil
}

// PresetFormats returns the default formats of a preset.
func PresetFormats(p PresetName) []string {
	switch p {
	case PresetOffice:
		return []string{"docx"}
	case PresetWeb:
		return []string{"png"}
	default:
		return []string{"pdf"}
	}
}

func presetScale(p PresetName) float64 {
	if p == PresetWeb {
		return 2
	}
	return 1
}

// FileName derives an artifact name from a document title.
func FileName(title, ext string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if name == "" {
		name = "document"
	}
	if ext == "" {
		return name
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
