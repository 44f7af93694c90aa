/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import "letterforge/internal/geometry"

// Viewport maps page pixels to widget coordinates: the page is fitted into
// the widget with a margin, scaled by Zoom and shifted by the pan offset.
type Viewport struct {
	PageW, PageH float64
	Zoom         float64
	OffX, OffY   float64
	// Margin is the free space kept around the fitted page, in widget units.
	Margin float64
}

// Minimum and maximum zoom factors relative to the fitted size.
const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

// Fit returns the scale (widget units per page pixel) and top-left page
// origin for a widget of size w×h.
func (v Viewport) Fit(w, h float64) (scale, ox, oy float64) {
	if v.PageW <= 0 || v.PageH <= 0 {
		return 1, 0, 0
	}
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	availW := max(w-2*v.Margin, 1)
	availH := max(h-2*v.Margin, 1)
	scale = min(availW/v.PageW, availH/v.PageH) * zoom
	ox = (w-v.PageW*scale)/2 + v.OffX
	oy = (h-v.PageH*scale)/2 + v.OffY
	return scale, ox, oy
}

// ToPage converts a widget point to page pixels.
func (v Viewport) ToPage(w, h, x, y float64) geometry.Pt {
	s, ox, oy := v.Fit(w, h)
	return geometry.Pt{X: (x - ox) / s, Y: (y - oy) / s}
}

// ToScreen converts a page rectangle to widget coordinates.
func (v Viewport) ToScreen(w, h float64, r geometry.Rect) geometry.Rect {
	s, ox, oy := v.Fit(w, h)
	return geometry.R(ox+r.X*s, oy+r.Y*s, r.W*s, r.H*s)
}

// Zoomed returns v with the zoom changed by delta and clamped.
func (v Viewport) Zoomed(delta float64) Viewport {
	v.Zoom = geometry.Clamp(v.Zoom+delta, MinZoom, MaxZoom)
	return v
}
