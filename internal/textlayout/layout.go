/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Text measurement and line breaking behind a small Provider interface, so
// the wrapping rules stay independent of the font engine in use.

import (
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ReferenceSample is measured to derive line height.
const ReferenceSample = "Hg"

// FontSpec describes a requested font. Size is in page pixels.
type FontSpec struct {
	Family string // logical family name; empty means the default family
	Size   float64
	Weight int // 100..900, 0 means regular
	Italic bool
}

// Bold reports whether the spec asks for a bold face.
func (s FontSpec) Bold() bool { return s.Weight >= 600 }

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Provider maps a FontSpec to a concrete font.Face. Faces returned are not
// shared between calls unless the implementation says otherwise.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// Block is a wrapped paragraph.
type Block struct {
	Lines      []string
	LineHeight float64
	// Width is the widest measured line.
	Width float64
}

// Height is the total height of the block.
func (b Block) Height() float64 { return float64(len(b.Lines)) * b.LineHeight }

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
// Every character advances 7px regardless of the requested size.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  fx(m.Ascent),
		Descent: fx(m.Descent),
		LineGap: fx(m.Height - m.Ascent - m.Descent),
	}
}

func fx(v fixed.Int26_6) float64 { return float64(v) / 64 }

// MeasureString returns the advance width of s in pixels.
func MeasureString(face font.Face, s string) float64 {
	return fx(font.MeasureString(face, s))
}

// LineHeight is the ink height of ReferenceSample rounded up to whole pixels.
func LineHeight(face font.Face) float64 {
	b, _ := font.BoundString(face, ReferenceSample)
	ascent := -fx(b.Min.Y)
	descent := fx(b.Max.Y)
	return math.Ceil(ascent + descent)
}

// Wrap breaks text into lines no wider than maxWidth. Words are separated by
// whitespace and packed greedily: a line is flushed before a word that would
// overflow it, unless the line is still empty, so a single long word
// overflows rather than being split. Newlines start a new paragraph.
func Wrap(p Provider, text string, spec FontSpec, maxWidth float64) Block {
	if p == nil {
		p = BasicProvider{}
	}
	face, _ := p.Resolve(spec)
	blk := Block{LineHeight: LineHeight(face)}
	if strings.TrimSpace(text) == "" {
		return blk
	}
	emit := func(line string) {
		blk.Lines = append(blk.Lines, line)
		blk.Width = max(blk.Width, MeasureString(face, line))
	}
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			emit("")
			continue
		}
		line := ""
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if line != "" && MeasureString(face, candidate) > maxWidth {
				emit(line)
				line = w
				continue
			}
			line = candidate
		}
		emit(line)
	}
	return blk
}

// AlignOffset returns the x offset of a line of width lineW inside a box of
// width boxW for the given alignment ("left", "center" or "right").
func AlignOffset(align string, lineW, boxW float64) float64 {
	switch align {
	case "center":
		return (boxW - lineW) / 2
	case "right":
		return boxW - lineW
	default:
		return 0
	}
}
