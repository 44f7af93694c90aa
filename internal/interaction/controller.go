/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interaction turns pointer input into element moves and resizes.
// A Controller owns at most one drag session. Geometry is written to the
// store on every move frame without touching history; the whole gesture is
// committed as one entry when the pointer is released.
package interaction

import (
	"log/slog"

	"letterforge/internal/domain"
	"letterforge/internal/editor"
	"letterforge/internal/geometry"
	applog "letterforge/internal/log"
)

// HandleSize is the edge length of the square resize handle drawn at the
// bottom-right corner of the selected element, in page pixels.
const HandleSize = 12.0

type dragMode int

const (
	dragMove dragMode = iota
	dragResize
)

// session captures everything needed to replay a gesture from its start.
type session struct {
	ref            domain.ElementRef
	mode           dragMode
	startX, startY float64
	origin         geometry.Rect
	desc           string
}

// Controller drives drag-move and drag-resize against an editor store.
type Controller struct {
	store *editor.Store
	scale float64
	cur   *session
	log   *slog.Logger
}

func New(store *editor.Store) *Controller {
	return &Controller{store: store, scale: 1, log: applog.WithComponent("interaction")}
}

// SetScale sets the display scale factor: screen pixels per page pixel.
func (c *Controller) SetScale(f float64) {
	if f > 0 {
		c.scale = f
	}
}

func (c *Controller) Scale() float64 { return c.scale }

// Active reports whether a drag session is in progress.
func (c *Controller) Active() bool { return c.cur != nil }

// HitTest finds the topmost element under the page point (x, y) and whether
// the point lies on its resize handle.
func (c *Controller) HitTest(x, y float64) (ref domain.ElementRef, onHandle bool, ok bool) {
	doc := c.store.Document()
	els := doc.Elements()
	p := geometry.Pt{X: x, Y: y}
	for i := len(els) - 1; i >= 0; i-- {
		r := els[i].Rect
		if !r.Contains(p) {
			continue
		}
		h := geometry.R(r.Right()-HandleSize, r.Bottom()-HandleSize, HandleSize, HandleSize)
		return els[i].Ref, h.Contains(p), true
	}
	return domain.ElementRef{}, false, false
}

// PointerDown starts a move (or a resize when resize is true) of ref at the
// screen position (px, py) and selects it. It is ignored while another
// session is active or when ref does not exist.
func (c *Controller) PointerDown(ref domain.ElementRef, px, py float64, resize bool) bool {
	if c.cur != nil {
		return false
	}
	el, ok := c.store.Element(ref)
	if !ok {
		return false
	}
	s := &session{ref: ref, startX: px, startY: py, origin: el.Rect, mode: dragMove}
	verb := "Move "
	if resize {
		s.mode = dragResize
		verb = "Resize "
	}
	s.desc = verb + editor.Describe(el)
	c.cur = s
	c.store.Select(ref)
	c.log.Debug("drag start", slog.String("ref", ref.String()), slog.Bool("resize", resize))
	return true
}

// PointerMove updates the dragged element for the screen position (px, py).
// precise (Shift) snaps to the grid instead of to neighbours.
func (c *Controller) PointerMove(px, py float64, precise bool) {
	s := c.cur
	if s == nil {
		return
	}
	el, ok := c.store.Element(s.ref)
	if !ok {
		// element vanished under us, e.g. removed by another view
		c.cur = nil
		c.store.SetGuides(geometry.Guides{})
		return
	}
	dx := (px - s.startX) / c.scale
	dy := (py - s.startY) / c.scale
	page := c.store.Page()

	switch s.mode {
	case dragMove:
		x, y := s.origin.X+dx, s.origin.Y+dy
		var guides geometry.Guides
		if precise {
			x, y = geometry.SnapToGrid(x, page.Grid), geometry.SnapToGrid(y, page.Grid)
		} else {
			res := geometry.FindSnapPoints(geometry.R(x, y, el.Rect.W, el.Rect.H), c.others(s.ref), page.SnapThreshold)
			x, y, guides = res.X, res.Y, res.Guides
		}
		c.store.SetGuides(guides)
		c.store.SetRect(s.ref, geometry.SanitizeRect(geometry.R(x, y, el.Rect.W, el.Rect.H), page))
	case dragResize:
		w, h := s.origin.W+dx, s.origin.H+dy
		if precise {
			w, h = geometry.SnapToGrid(w, page.Grid), geometry.SnapToGrid(h, page.Grid)
		}
		w = geometry.Clamp(w, page.MinW, max(page.MinW, page.Width-page.SafeMargin-s.origin.X))
		h = geometry.Clamp(h, page.MinH, max(page.MinH, page.Height-page.SafeMargin-s.origin.Y))
		c.store.SetRect(s.ref, geometry.R(s.origin.X, s.origin.Y, w, h))
	}
}

// PointerUp ends the session, clears guides and commits one history entry
// for the whole gesture.
func (c *Controller) PointerUp() {
	s := c.cur
	if s == nil {
		return
	}
	c.cur = nil
	c.store.SetGuides(geometry.Guides{})
	c.store.SaveToHistory(s.desc)
	c.log.Debug("drag end", slog.String("ref", s.ref.String()), slog.String("desc", s.desc))
}

// ClickEmpty handles a click on the bare page: the selection is cleared and
// history is left alone.
func (c *Controller) ClickEmpty() {
	if c.cur != nil {
		return
	}
	c.store.ClearSelection()
}

// Click selects what is under the page point, or clears the selection.
func (c *Controller) Click(x, y float64) {
	if ref, _, ok := c.HitTest(x, y); ok {
		c.store.Select(ref)
		return
	}
	c.ClickEmpty()
}

func (c *Controller) others(except domain.ElementRef) []geometry.Rect {
	doc := c.store.Document()
	els := doc.Elements()
	out := make([]geometry.Rect, 0, len(els))
	for _, e := range els {
		if e.Ref != except {
			out = append(out, e.Rect)
		}
	}
	return out
}
