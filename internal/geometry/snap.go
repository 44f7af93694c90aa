/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import "math"

// Edge names one of the three alignment features of a rect along an axis.
type Edge int

const (
	EdgeStart  Edge = iota // left or top
	EdgeEnd                // right or bottom
	EdgeCenter             // horizontal or vertical center
)

var edgeOrder = [...]Edge{EdgeStart, EdgeEnd, EdgeCenter}

// Guides holds the guide coordinates to render for a snap result.
// Horizontal lists x coordinates found while aligning along the horizontal
// axis (each drawn as a vertical line); Vertical lists y coordinates.
// Entries are not deduplicated.
type Guides struct {
	Horizontal []float64 `json:"horizontal,omitempty"`
	Vertical   []float64 `json:"vertical,omitempty"`
}

// Empty reports whether there is nothing to draw.
func (g Guides) Empty() bool { return len(g.Horizontal) == 0 && len(g.Vertical) == 0 }

// SnapResult is the outcome of FindSnapPoints.
type SnapResult struct {
	X, Y           float64
	SnappedX       bool
	SnappedY       bool
	Guides         Guides
	MatchX, MatchY int // index into others of the winning element, -1 when unsnapped
}

// FindSnapPoints aligns the moving rect to its neighbours. Each axis is handled
// independently: the moving start/end/center is compared against the
// start/end/center of every other rect, walking others in order, and the first
// pair within threshold wins. There is no distance ranking, so an earlier
// element beats a closer later one. An axis without a candidate keeps the
// original coordinate and gets no guides.
func FindSnapPoints(current Rect, others []Rect, threshold float64) SnapResult {
	res := SnapResult{X: current.X, Y: current.Y, MatchX: -1, MatchY: -1}

	if x, idx, ok := firstMatch(current.X, current.W, others, threshold, horizontal); ok {
		res.X, res.SnappedX, res.MatchX = x, true, idx
		res.Guides.Horizontal = coinciding(Rect{X: x, W: current.W}, others, horizontal)
	}
	if y, idx, ok := firstMatch(current.Y, current.H, others, threshold, vertical); ok {
		res.Y, res.SnappedY, res.MatchY = y, true, idx
		res.Guides.Vertical = coinciding(Rect{Y: y, H: current.H}, others, vertical)
	}
	return res
}

type axis int

const (
	horizontal axis = iota
	vertical
)

func edgeOf(r Rect, e Edge, a axis) float64 {
	pos, size := r.X, r.W
	if a == vertical {
		pos, size = r.Y, r.H
	}
	switch e {
	case EdgeStart:
		return pos
	case EdgeEnd:
		return pos + size
	case EdgeCenter:
		return pos + size/2
	}
	return pos
}

// offset is the distance from the rect origin to edge e for a given size.
func offset(e Edge, size float64) float64 {
	switch e {
	case EdgeEnd:
		return size
	case EdgeCenter:
		return size / 2
	default:
		return 0
	}
}

func firstMatch(pos, size float64, others []Rect, threshold float64, a axis) (float64, int, bool) {
	for i, o := range others {
		for _, me := range edgeOrder {
			mv := pos + offset(me, size)
			for _, oe := range edgeOrder {
				target := edgeOf(o, oe, a)
				if math.Abs(mv-target) <= threshold {
					return target - offset(me, size), i, true
				}
			}
		}
	}
	return 0, -1, false
}

// coinciding collects every neighbour edge that lines up with one of the
// snapped rect's edges on axis a.
func coinciding(snapped Rect, others []Rect, a axis) []float64 {
	const eps = 0.5
	var out []float64
	for _, o := range others {
		for _, oe := range edgeOrder {
			target := edgeOf(o, oe, a)
			for _, me := range edgeOrder {
				if math.Abs(edgeOf(snapped, me, a)-target) <= eps {
					out = append(out, FloatRound(target, 3))
					break
				}
			}
		}
	}
	return out
}
