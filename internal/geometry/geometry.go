/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geometry holds the pure placement math of the editor: clamping,
// grid snapping, page-bounds sanitation and neighbour alignment.
package geometry

import "math"

// Pt is a 2D point in page pixels.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by its top-left corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Left() float64    { return r.X }
func (r Rect) Right() float64   { return r.X + r.W }
func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) Top() float64     { return r.Y }
func (r Rect) Bottom() float64  { return r.Y + r.H }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Within reports whether r lies entirely inside o.
func (r Rect) Within(o Rect) bool {
	return r.X >= o.X && r.Y >= o.Y && r.Right() <= o.Right() && r.Bottom() <= o.Bottom()
}

// Intersects reports whether the interiors of r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.Right(), o.Right())
	maxY := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Clamp saturates n into [lo, hi]. NaN maps to lo.
func Clamp(n, lo, hi float64) float64 {
	if n != n {
		return lo
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// SnapToGrid rounds n to the nearest multiple of grid.
func SnapToGrid(n, grid float64) float64 {
	if grid <= 0 {
		return n
	}
	return math.Round(n/grid) * grid
}

// SanitizeRect returns the legal placement closest to r on page p. Size is
// clamped first to [min, dim-2*margin] (max floored at min), then position is
// clamped with the sanitized size so the rect stays inside the safe area.
func SanitizeRect(r Rect, p Page) Rect {
	maxW := math.Max(p.Width-2*p.SafeMargin, p.MinW)
	maxH := math.Max(p.Height-2*p.SafeMargin, p.MinH)
	w := Clamp(r.W, p.MinW, maxW)
	h := Clamp(r.H, p.MinH, maxH)
	x := Clamp(r.X, p.SafeMargin, math.Max(p.SafeMargin, p.Width-p.SafeMargin-w))
	y := Clamp(r.Y, p.SafeMargin, math.Max(p.SafeMargin, p.Height-p.SafeMargin-h))
	return Rect{X: x, Y: y, W: w, H: h}
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
