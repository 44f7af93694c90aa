/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// GoFamily is the family name the bundled Go fonts are registered under.
const GoFamily = "Go"

// FontLibrary stores parsed OpenType fonts by family, weight and italic.
// It is safe for concurrent use.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
	// def is the family used when a spec leaves Family empty
	def string
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

var (
	goLibOnce sync.Once
	goLib     *FontLibrary
	goLibErr  error
)

// GoFonts returns a shared library holding the four Go font faces.
func GoFonts() (*FontLibrary, error) {
	goLibOnce.Do(func() {
		lib := NewFontLibrary()
		for _, f := range []struct {
			data         []byte
			bold, italic bool
		}{
			{goregular.TTF, false, false},
			{gobold.TTF, true, false},
			{goitalic.TTF, false, true},
			{gobolditalic.TTF, true, true},
		} {
			if err := lib.Add(GoFamily, f.bold, f.italic, f.data); err != nil {
				goLibErr = err
				return
			}
		}
		lib.def = GoFamily
		goLib = lib
	})
	return goLib, goLibErr
}

// Add parses font data and registers it.
func (fl *FontLibrary) Add(family string, bold, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: family, bold: bold, italic: italic}] = f
	if fl.def == "" {
		fl.def = family
	}
	return nil
}

// LoadTTF loads a font file into the library.
func (fl *FontLibrary) LoadTTF(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, italic, data)
}

// Families lists registered family names.
func (fl *FontLibrary) Families() []string {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for k := range fl.fonts {
		if !seen[k.family] {
			seen[k.family] = true
			out = append(out, k.family)
		}
	}
	return out
}

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	family := spec.Family
	if family == "" {
		family = fl.def
	}
	if f, ok := fl.fonts[fontKey{family: family, bold: spec.Bold(), italic: spec.Italic}]; ok {
		return f
	}
	// same family, any style
	for _, k := range []fontKey{{family, false, false}, {family, spec.Bold(), false}, {family, false, spec.Italic}} {
		if f, ok := fl.fonts[k]; ok {
			return f
		}
	}
	return nil
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another
// Provider. Each Resolve creates a fresh face, so callers may measure from
// several goroutines at once.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero, making Size pixels
	Fallback Provider
}

// NewGoProvider returns an OTProvider backed by the bundled Go fonts.
func NewGoProvider() (OTProvider, error) {
	lib, err := GoFonts()
	if err != nil {
		return OTProvider{}, err
	}
	return OTProvider{Lib: lib}, nil
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.Size <= 0 {
		spec.Size = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if f := p.Lib.find(spec); f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.Size, DPI: dpi, Hinting: font.HintingNone})
		if err == nil {
			return face, metricsOf(face)
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}

// ProviderFor picks a provider by name: "basic" selects the fixed-width test
// face, anything else the Go fonts.
func ProviderFor(name string) Provider {
	if name == "basic" {
		return BasicProvider{}
	}
	p, err := NewGoProvider()
	if err != nil {
		return BasicProvider{}
	}
	return p
}
