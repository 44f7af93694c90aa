/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

// Page describes the fixed canvas every element lives on. All values are in
// page pixels (96 dpi).
type Page struct {
	Width      float64 `json:"width" yaml:"width"`
	Height     float64 `json:"height" yaml:"height"`
	SafeMargin float64 `json:"safeMargin" yaml:"safe_margin"`
	Grid       float64 `json:"grid" yaml:"grid"`
	MinW       float64 `json:"minW" yaml:"min_w"`
	MinH       float64 `json:"minH" yaml:"min_h"`
	// SnapThreshold is the maximum edge distance at which alignment snapping engages.
	SnapThreshold float64 `json:"snapThreshold" yaml:"snap_threshold"`
}

// Defaults for an A4 page at 96 dpi.
const (
	DefaultPageW         = 794
	DefaultPageH         = 1123
	DefaultSafeMargin    = 40
	DefaultGrid          = 10
	DefaultMinW          = 80
	DefaultMinH          = 30
	DefaultSnapThreshold = 5
)

// DefaultPage returns the A4 page used when nothing else is configured.
func DefaultPage() Page {
	return Page{
		Width:         DefaultPageW,
		Height:        DefaultPageH,
		SafeMargin:    DefaultSafeMargin,
		Grid:          DefaultGrid,
		MinW:          DefaultMinW,
		MinH:          DefaultMinH,
		SnapThreshold: DefaultSnapThreshold,
	}
}

// Normalized fills zero or negative values with the defaults.
func (p Page) Normalized() Page {
	d := DefaultPage()
	if p.Width <= 0 {
		p.Width = d.Width
	}
	if p.Height <= 0 {
		p.Height = d.Height
	}
	if p.SafeMargin < 0 {
		p.SafeMargin = d.SafeMargin
	}
	if p.Grid <= 0 {
		p.Grid = d.Grid
	}
	if p.MinW <= 0 {
		p.MinW = d.MinW
	}
	if p.MinH <= 0 {
		p.MinH = d.MinH
	}
	if p.SnapThreshold <= 0 {
		p.SnapThreshold = d.SnapThreshold
	}
	return p
}

// Placeable is the safe area elements must stay inside.
func (p Page) Placeable() Rect {
	return Rect{X: p.SafeMargin, Y: p.SafeMargin, W: p.Width - 2*p.SafeMargin, H: p.Height - 2*p.SafeMargin}
}
