/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the document store: the single mutation surface for
// page elements, selection, snap guides and undo history. A Store is an
// explicit value passed to its users; there is no package-level instance.
package editor

import (
	"log/slog"
	"sync"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	"letterforge/internal/history"
	applog "letterforge/internal/log"
)

// Mode is a presentation flag for frontends. The store only carries it.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeAdvanced Mode = "advanced"
)

// Defaults for newly added elements.
const (
	DefaultOffset      = 20.0 // from the safe margin
	DefaultTextW       = 240.0
	DefaultTextH       = 40.0
	DefaultFontSize    = 14.0
	DefaultText        = "New text"
	MaxInitialImageW   = 300.0
	DefaultTableW      = 400.0
	TableRowHeight     = 32.0
	MaxImportTableH    = 400.0
	ImportSpacing      = 20.0
	ImportFirstOffset  = 36.0
	ImportMinTextH     = 60.0
	ImportMaxTextH     = 200.0
	importCharsPerLine = 80
	importLineHeight   = 20.0
)

// Options configures a Store.
type Options struct {
	Page         geometry.Page
	HistoryLimit int
	Logger       *slog.Logger
	// OnCommit is called after every history commit, outside the store lock.
	OnCommit func(history.Entry)
}

// State is an immutable view handed to subscribers.
type State struct {
	Document     domain.Document
	Selection    domain.ElementRef
	Guides       geometry.Guides
	Mode         Mode
	CanUndo      bool
	CanRedo      bool
	HistoryIndex int
	HistoryLen   int
}

// Store owns the document. All methods are safe for concurrent use;
// subscribers run synchronously on the mutating goroutine after the lock is
// released.
type Store struct {
	mu        sync.Mutex
	page      geometry.Page
	doc       domain.Document
	selection domain.ElementRef
	guides    geometry.Guides
	mode      Mode
	nextID    int
	hist      *history.Manager
	onCommit  func(history.Entry)
	log       *slog.Logger

	subMu  sync.Mutex
	subs   map[int]func(State)
	subSeq int
}

// New creates an empty store whose history starts with one entry, so the
// first change is undoable.
func New(opts Options) *Store {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("editor")
	}
	s := &Store{
		page:     opts.Page.Normalized(),
		mode:     ModeSimple,
		nextID:   1,
		hist:     history.NewManager(history.Config{Limit: opts.HistoryLimit}),
		onCommit: opts.OnCommit,
		log:      l,
		subs:     map[int]func(State){},
	}
	s.hist.Reset("Initial state", s.doc.Snapshot())
	return s
}

// Page returns the page geometry the store sanitizes against.
func (s *Store) Page() geometry.Page { return s.page }

// Subscribe registers fn to be called after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	if len(fns) == 0 {
		return
	}
	st := s.State()
	for _, fn := range fns {
		fn(st)
	}
}

// State returns a deep-copied view of the store.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Document:     s.doc.Clone(),
		Selection:    s.selection,
		Guides:       cloneGuides(s.guides),
		Mode:         s.mode,
		CanUndo:      s.hist.CanUndo(),
		CanRedo:      s.hist.CanRedo(),
		HistoryIndex: s.hist.Index(),
		HistoryLen:   s.hist.Len(),
	}
}

// Document returns a deep copy of the current document. Exporters work on
// this copy so they never observe later edits.
func (s *Store) Document() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// apply runs fn under the lock. When fn reports a change and a description,
// a history entry is committed. Subscribers are notified on change.
func (s *Store) apply(fn func() (changed bool, commit string)) bool {
	s.mu.Lock()
	changed, desc := fn()
	var entry *history.Entry
	if changed && desc != "" {
		e := s.commitLocked(desc)
		entry = &e
	}
	s.mu.Unlock()
	if entry != nil && s.onCommit != nil {
		s.onCommit(*entry)
	}
	if changed {
		s.notify()
	}
	return changed
}

func (s *Store) commitLocked(desc string) history.Entry {
	e := s.hist.Commit(desc, domain.Snapshot{Fields: s.doc.Fields, Tables: s.doc.Tables})
	s.log.Debug("history commit", slog.String("desc", desc), slog.Int("index", s.hist.Index()))
	return e
}

func (s *Store) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

// SaveToHistory records the current elements as an undoable step.
func (s *Store) SaveToHistory(description string) {
	s.apply(func() (bool, string) { return true, description })
}

// Undo restores the previous history entry and clears the selection.
func (s *Store) Undo() bool { return s.travel(s.hist.Undo, "undo") }

// Redo restores the next history entry and clears the selection.
func (s *Store) Redo() bool { return s.travel(s.hist.Redo, "redo") }

func (s *Store) travel(step func() (history.Entry, bool), op string) bool {
	return s.apply(func() (bool, string) {
		e, ok := step()
		if !ok {
			return false, ""
		}
		s.doc.Fields, s.doc.Tables = e.Snapshot.Fields, e.Snapshot.Tables
		s.selection = domain.ElementRef{}
		s.guides = geometry.Guides{}
		s.log.Info(op, slog.String("entry", e.Description))
		return true, ""
	})
}

func (s *Store) CanUndo() bool { return s.hist.CanUndo() }
func (s *Store) CanRedo() bool { return s.hist.CanRedo() }

// HistoryLen and HistoryIndex expose the log for frontends.
func (s *Store) HistoryLen() int   { return s.hist.Len() }
func (s *Store) HistoryIndex() int { return s.hist.Index() }

// Load replaces the document, repairs geometry and table shape, and resets
// history to a single entry.
func (s *Store) Load(doc domain.Document) {
	s.mu.Lock()
	d := doc.Clone()
	d.NormalizeBorders()
	for i := range d.Fields {
		d.Fields[i].SetRect(geometry.SanitizeRect(d.Fields[i].Rect(), s.page))
	}
	for i := range d.Tables {
		t := &d.Tables[i]
		t.SetRect(geometry.SanitizeRect(t.Rect(), s.page))
		if rows := domain.NormalizeRows(t.Rows); rows != nil {
			t.Rows = rows
		} else {
			t.Rows = [][]string{{""}}
		}
	}
	s.doc = d
	s.nextID = max(s.nextID, d.MaxID()+1)
	s.selection = domain.ElementRef{}
	s.guides = geometry.Guides{}
	s.hist.Reset("Open template", d.Snapshot())
	s.mu.Unlock()
	s.log.Info("document loaded", slog.String("title", d.Title), slog.Int("fields", len(d.Fields)), slog.Int("tables", len(d.Tables)))
	s.notify()
}

// SetTitle renames the document. Titles are not part of history.
func (s *Store) SetTitle(title string) {
	s.apply(func() (bool, string) {
		if s.doc.Title == title {
			return false, ""
		}
		s.doc.Title = title
		return true, ""
	})
}

// SetMode switches the presentation mode.
func (s *Store) SetMode(m Mode) {
	s.apply(func() (bool, string) {
		if m != ModeSimple && m != ModeAdvanced || s.mode == m {
			return false, ""
		}
		s.mode = m
		return true, ""
	})
}

// Selection returns the selected element, zero when none.
func (s *Store) Selection() domain.ElementRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Select marks ref as selected if it exists.
func (s *Store) Select(ref domain.ElementRef) bool {
	return s.apply(func() (bool, string) {
		if !s.existsLocked(ref) {
			return false, ""
		}
		if s.selection == ref {
			return false, ""
		}
		s.selection = ref
		return true, ""
	})
}

// ClearSelection deselects without touching history.
func (s *Store) ClearSelection() {
	s.apply(func() (bool, string) {
		if s.selection.IsZero() {
			return false, ""
		}
		s.selection = domain.ElementRef{}
		return true, ""
	})
}

// Guides returns the snap guides currently shown.
func (s *Store) Guides() geometry.Guides {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGuides(s.guides)
}

// SetGuides replaces the rendered snap guides.
func (s *Store) SetGuides(g geometry.Guides) {
	s.apply(func() (bool, string) {
		if s.guides.Empty() && g.Empty() {
			return false, ""
		}
		s.guides = cloneGuides(g)
		return true, ""
	})
}

func cloneGuides(g geometry.Guides) geometry.Guides {
	return geometry.Guides{
		Horizontal: append([]float64(nil), g.Horizontal...),
		Vertical:   append([]float64(nil), g.Vertical...),
	}
}

func (s *Store) existsLocked(ref domain.ElementRef) bool {
	switch ref.Type {
	case domain.ElementField:
		return s.fieldIndexLocked(ref.ID) >= 0
	case domain.ElementTable:
		return s.tableIndexLocked(ref.ID) >= 0
	}
	return false
}

func (s *Store) fieldIndexLocked(id int) int {
	for i := range s.doc.Fields {
		if s.doc.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) tableIndexLocked(id int) int {
	for i := range s.doc.Tables {
		if s.doc.Tables[i].ID == id {
			return i
		}
	}
	return -1
}

// Element returns a copy of the referenced element.
func (s *Store) Element(ref domain.ElementRef) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ref.Type {
	case domain.ElementField:
		if i := s.fieldIndexLocked(ref.ID); i >= 0 {
			f := s.doc.Fields[i]
			return domain.Element{Ref: ref, Rect: f.Rect(), Field: &f}, true
		}
	case domain.ElementTable:
		if i := s.tableIndexLocked(ref.ID); i >= 0 {
			t := s.doc.Tables[i].Clone()
			return domain.Element{Ref: ref, Rect: t.Rect(), Table: &t}, true
		}
	}
	return domain.Element{}, false
}

// SetRect moves or resizes any element. The rect is sanitized; no history
// entry is written.
func (s *Store) SetRect(ref domain.ElementRef, r geometry.Rect) bool {
	g := GeometryPatch{X: &r.X, Y: &r.Y, W: &r.W, H: &r.H}
	switch ref.Type {
	case domain.ElementField:
		return s.UpdateField(ref.ID, FieldPatch{GeometryPatch: g})
	case domain.ElementTable:
		return s.UpdateTable(ref.ID, TablePatch{GeometryPatch: g})
	}
	return false
}
