//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"letterforge/internal/domain"
	"letterforge/internal/editor"
	"letterforge/internal/export"
	"letterforge/internal/geometry"
	"letterforge/internal/history"
	"letterforge/internal/interaction"
	applog "letterforge/internal/log"
	"letterforge/internal/storage"
	"letterforge/internal/textlayout"
)

// Run opens the editor window and blocks until it is closed.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	st, err := storage.Open(opts.StoreRoot)
	if err != nil {
		return err
	}
	ix, err := storage.OpenOrRebuildIndex(context.Background(), st)
	if err != nil {
		l.Warn("index unavailable, history snapshots disabled", slog.Any("err", err))
	}
	var docID string
	es := editor.New(editor.Options{
		Page:         opts.Page,
		HistoryLimit: opts.HistoryLimit,
		OnCommit: func(e history.Entry) {
			if ix != nil && docID != "" {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := ix.SaveSnapshot(ctx, docID, e); err != nil {
					l.Warn("persist snapshot failed", slog.Any("err", err))
				}
			}
		},
	})
	if opts.TemplateID != "" {
		doc, err := st.Load(opts.TemplateID)
		if err != nil {
			return err
		}
		docID = doc.ID
		es.Load(doc)
	}
	provider := textlayout.ProviderFor("go")

	a := app.NewWithID("io.letterforge.editor")
	w := a.NewWindow("letterforge")
	ctrl := interaction.New(es)
	pc := NewPageCanvas(es, ctrl, provider)
	status := widget.NewLabel("Ready")
	insp := newInspector(es)

	save := func() {
		insp.flush()
		doc := es.Document()
		if doc.ID == "" {
			doc.ID = docID
		}
		if err := st.Save(&doc); err != nil {
			dialog.ShowError(err, w)
			return
		}
		docID = doc.ID
		if ix != nil {
			_ = ix.Upsert(context.Background(), doc)
			_ = ix.InvalidatePreviews(context.Background(), doc.ID)
		}
		status.SetText("Saved " + doc.ID)
	}
	exportAs := func(ext string) {
		doc := es.Document()
		dir := opts.ExportDir
		if dir == "" {
			dir = filepath.Join(opts.StoreRoot, "export")
		}
		out := filepath.Join(dir, export.FileName(doc.Title, ext))
		var err error
		switch ext {
		case "pdf":
			err = export.ExportPDF(doc, es.Page(), provider, out, export.PDFOptions{})
		case "docx":
			err = export.ExportDOCX(doc, es.Page(), provider, out)
		default:
			err = export.ExportPNG(doc, es.Page(), provider, out, export.PNGOptions{Scale: 1})
		}
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Exported " + out)
	}
	addImage := func() {
		dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
			if err != nil || r == nil {
				return
			}
			path := r.URI().Path()
			_ = r.Close()
			dataURL, iw, ih, err := export.ImageDataURL(path)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			es.AddImageField(dataURL, float64(iw), float64(ih))
		}, w)
	}
	deleteSelection := func() {
		sel := es.Selection()
		switch sel.Type {
		case domain.ElementField:
			es.RemoveField(sel.ID)
		case domain.ElementTable:
			es.RemoveTable(sel.ID)
		}
	}

	undo := func() { insp.flush(); es.Undo() }
	redo := func() { insp.flush(); es.Redo() }

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() { es.AddTextField() }),
		widget.NewToolbarAction(theme.FileImageIcon(), addImage),
		widget.NewToolbarAction(theme.GridIcon(), func() { es.AddTable(3, 3) }),
		widget.NewToolbarAction(theme.DeleteIcon(), deleteSelection),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), undo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), redo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { pc.ZoomBy(-0.1) }),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { pc.ZoomBy(0.1) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), save),
		widget.NewToolbarAction(theme.DownloadIcon(), func() { exportAs("pdf") }),
	)
	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("PDF", func() { exportAs("pdf") }),
		fyne.NewMenuItem("DOCX", func() { exportAs("docx") }),
		fyne.NewMenuItem("PNG", func() { exportAs("png") }),
	)
	w.SetMainMenu(fyne.NewMainMenu(exportMenu))

	sc := w.Canvas()
	sc.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { undo() })
	sc.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift}, func(fyne.Shortcut) { redo() })
	sc.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { save() })

	es.Subscribe(func(s editor.State) {
		pc.Refresh()
		insp.show(s)
		status.SetText(fmt.Sprintf("%d fields, %d tables | history %d/%d", len(s.Document.Fields), len(s.Document.Tables), s.HistoryIndex+1, s.HistoryLen))
	})

	content := container.NewBorder(toolbar, status, nil, insp.box, pc)
	w.SetContent(content)
	w.Resize(fyne.NewSize(1200, 900))
	w.SetOnClosed(func() {
		if ix != nil {
			_ = ix.Close()
		}
	})
	l.Info("ui started", slog.String("store", st.Root))
	w.ShowAndRun()
	return nil
}

// PageCanvas renders the page with export.Rasterize and overlays the
// selection, its resize handle and the alignment guides. Pointer input is
// forwarded to the interaction controller.
type PageCanvas struct {
	widget.BaseWidget

	store    *editor.Store
	ctrl     *interaction.Controller
	provider textlayout.Provider
	view     Viewport
	precise  bool
	pending  *pressed
}

type pressed struct {
	ref    domain.ElementRef
	at     fyne.Position
	resize bool
}

var (
	_ fyne.Tappable       = (*PageCanvas)(nil)
	_ fyne.Draggable      = (*PageCanvas)(nil)
	_ fyne.Scrollable     = (*PageCanvas)(nil)
	_ desktop.Mouseable   = (*PageCanvas)(nil)
	_ fyne.WidgetRenderer = (*pageCanvasRenderer)(nil)
)

func NewPageCanvas(store *editor.Store, ctrl *interaction.Controller, p textlayout.Provider) *PageCanvas {
	page := store.Page()
	pc := &PageCanvas{
		store:    store,
		ctrl:     ctrl,
		provider: p,
		view:     Viewport{PageW: page.Width, PageH: page.Height, Zoom: 1, Margin: 16},
	}
	pc.ExtendBaseWidget(pc)
	return pc
}

// ZoomBy changes the zoom relative to the fitted size.
func (p *PageCanvas) ZoomBy(delta float64) {
	p.view = p.view.Zoomed(delta)
	p.Refresh()
}

func (p *PageCanvas) size() (float64, float64) {
	s := p.Size()
	return float64(s.Width), float64(s.Height)
}

func (p *PageCanvas) toPage(pos fyne.Position) geometry.Pt {
	w, h := p.size()
	return p.view.ToPage(w, h, float64(pos.X), float64(pos.Y))
}

func (p *PageCanvas) syncScale() {
	w, h := p.size()
	s, _, _ := p.view.Fit(w, h)
	p.ctrl.SetScale(s)
}

// MouseDown remembers what was pressed; the controller session only starts
// once the pointer actually drags, so a plain click never commits history.
func (p *PageCanvas) MouseDown(e *desktop.MouseEvent) {
	p.pending = nil
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	p.precise = e.Modifier&fyne.KeyModifierShift != 0
	p.syncScale()
	pt := p.toPage(e.Position)
	ref, onHandle, ok := p.ctrl.HitTest(pt.X, pt.Y)
	if !ok {
		return
	}
	p.pending = &pressed{ref: ref, at: e.Position, resize: onHandle}
}

func (p *PageCanvas) MouseUp(*desktop.MouseEvent) { p.pending = nil }

func (p *PageCanvas) Dragged(e *fyne.DragEvent) {
	if !p.ctrl.Active() {
		if p.pending == nil {
			return
		}
		pr := p.pending
		p.pending = nil
		if !p.ctrl.PointerDown(pr.ref, float64(pr.at.X), float64(pr.at.Y), pr.resize) {
			return
		}
	}
	p.ctrl.PointerMove(float64(e.Position.X), float64(e.Position.Y), p.precise)
}

func (p *PageCanvas) DragEnd() { p.ctrl.PointerUp() }

// Tapped on bare page clears the selection.
func (p *PageCanvas) Tapped(e *fyne.PointEvent) {
	pt := p.toPage(e.Position)
	p.ctrl.Click(pt.X, pt.Y)
}

// Scrolled zooms with the wheel.
func (p *PageCanvas) Scrolled(e *fyne.ScrollEvent) {
	p.ZoomBy(float64(e.Scrolled.DY) * 0.01)
}

func (p *PageCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 500) }

func (p *PageCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 48, G: 48, B: 52, A: 255})
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	safe := canvas.NewRectangle(color.Transparent)
	safe.StrokeColor = color.RGBA{R: 0, G: 160, B: 255, A: 90}
	safe.StrokeWidth = 1
	sel := canvas.NewRectangle(color.Transparent)
	sel.StrokeColor = color.RGBA{R: 0, G: 120, B: 255, A: 255}
	sel.StrokeWidth = 2
	sel.Hide()
	handle := canvas.NewRectangle(color.RGBA{R: 0, G: 120, B: 255, A: 255})
	handle.Hide()
	r := &pageCanvasRenderer{pc: p, bg: bg, img: img, safe: safe, sel: sel, handle: handle}
	r.rebuildObjects()
	return r
}

type pageCanvasRenderer struct {
	pc      *PageCanvas
	bg      *canvas.Rectangle
	img     *canvas.Image
	safe    *canvas.Rectangle
	sel     *canvas.Rectangle
	handle  *canvas.Rectangle
	guides  []*canvas.Line
	objects []fyne.CanvasObject
	// rendered is the document the current raster shows
	rendered *domain.Document
}

func (r *pageCanvasRenderer) Destroy()                     {}
func (r *pageCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *pageCanvasRenderer) MinSize() fyne.Size           { return r.pc.MinSize() }

func (r *pageCanvasRenderer) rebuildObjects() {
	objs := []fyne.CanvasObject{r.bg, r.img, r.safe, r.sel, r.handle}
	for _, g := range r.guides {
		objs = append(objs, g)
	}
	r.objects = objs
}

func (r *pageCanvasRenderer) Refresh() {
	st := r.pc.store.State()
	doc := st.Document
	if r.rendered == nil || !sameLayout(*r.rendered, doc) {
		if img, err := export.Rasterize(doc, r.pc.store.Page(), r.pc.provider, export.PNGOptions{Scale: 1}); err == nil {
			r.img.Image = img
			r.img.Refresh()
			r.rendered = &doc
		}
	}
	r.Layout(r.pc.Size())
	for _, o := range r.objects[2:] {
		o.Refresh()
	}
}

// sameLayout is a cheap check whether a re-raster is needed.
func sameLayout(a, b domain.Document) bool {
	if len(a.Fields) != len(b.Fields) || len(a.Tables) != len(b.Tables) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	for i := range a.Tables {
		ta, tb := a.Tables[i], b.Tables[i]
		if ta.ID != tb.ID || ta.X != tb.X || ta.Y != tb.Y || ta.W != tb.W || ta.H != tb.H ||
			ta.HeaderRow != tb.HeaderRow || ta.BorderStyle != tb.BorderStyle || len(ta.Rows) != len(tb.Rows) {
			return false
		}
		for j := range ta.Rows {
			if fmt.Sprint(ta.Rows[j]) != fmt.Sprint(tb.Rows[j]) {
				return false
			}
		}
	}
	return true
}

func place(o fyne.CanvasObject, r geometry.Rect) {
	o.Move(fyne.NewPos(float32(r.X), float32(r.Y)))
	o.Resize(fyne.NewSize(float32(r.W), float32(r.H)))
}

func (r *pageCanvasRenderer) Layout(size fyne.Size) {
	pc := r.pc
	w, h := float64(size.Width), float64(size.Height)
	page := pc.store.Page()
	r.bg.Resize(size)
	place(r.img, pc.view.ToScreen(w, h, geometry.R(0, 0, page.Width, page.Height)))
	place(r.safe, pc.view.ToScreen(w, h, page.Placeable()))

	st := pc.store.State()
	if el, ok := pc.store.Element(st.Selection); ok {
		sr := pc.view.ToScreen(w, h, el.Rect)
		place(r.sel, sr)
		hr := pc.view.ToScreen(w, h, geometry.R(el.Rect.Right()-interaction.HandleSize, el.Rect.Bottom()-interaction.HandleSize, interaction.HandleSize, interaction.HandleSize))
		place(r.handle, hr)
		r.sel.Show()
		r.handle.Show()
	} else {
		r.sel.Hide()
		r.handle.Hide()
	}

	need := len(st.Guides.Horizontal) + len(st.Guides.Vertical)
	if need > len(r.guides) {
		for len(r.guides) < need {
			ln := canvas.NewLine(color.RGBA{R: 255, G: 0, B: 128, A: 220})
			ln.StrokeWidth = 1
			r.guides = append(r.guides, ln)
		}
		r.rebuildObjects()
	}
	i := 0
	for _, y := range st.Guides.Horizontal {
		a := pc.view.ToScreen(w, h, geometry.R(0, y, page.Width, 0))
		r.guides[i].Position1 = fyne.NewPos(float32(a.X), float32(a.Y))
		r.guides[i].Position2 = fyne.NewPos(float32(a.X+a.W), float32(a.Y))
		r.guides[i].Show()
		i++
	}
	for _, x := range st.Guides.Vertical {
		a := pc.view.ToScreen(w, h, geometry.R(x, 0, 0, page.Height))
		r.guides[i].Position1 = fyne.NewPos(float32(a.X), float32(a.Y))
		r.guides[i].Position2 = fyne.NewPos(float32(a.X), float32(a.Y+a.H))
		r.guides[i].Show()
		i++
	}
	for ; i < len(r.guides); i++ {
		r.guides[i].Hide()
	}
}

// commitEntry is an Entry that reports when editing ends, either by losing
// focus or by submitting.
type commitEntry struct {
	widget.Entry
	onCommit func()
}

func newCommitEntry(multiLine bool, onCommit func()) *commitEntry {
	e := &commitEntry{onCommit: onCommit}
	e.MultiLine = multiLine
	if multiLine {
		e.Wrapping = fyne.TextWrapWord
	}
	e.OnSubmitted = func(string) { onCommit() }
	e.ExtendBaseWidget(e)
	return e
}

func (e *commitEntry) FocusLost() {
	e.Entry.FocusLost()
	e.onCommit()
}

// inspector edits the selected element's content. Typing updates the store
// live; the history entry is written once editing ends.
type inspector struct {
	store  *editor.Store
	box    *fyne.Container
	title  *widget.Entry
	text   *commitEntry
	bold   *widget.Check
	italic *widget.Check
	align  *widget.Select
	table  *fyne.Container
	row    *widget.Select
	col    *widget.Select
	cell   *commitEntry
	// current is the element the widgets show; updates are ignored while
	// show() fills them in
	current  domain.ElementRef
	updating bool
	// pending names the uncommitted edit, empty when there is none
	pending string
}

func newInspector(store *editor.Store) *inspector {
	in := &inspector{store: store}
	in.title = widget.NewEntry()
	in.title.SetPlaceHolder("Title")
	in.title.OnChanged = func(s string) {
		if !in.updating {
			store.SetTitle(s)
		}
	}
	in.text = newCommitEntry(true, in.flush)
	in.text.OnChanged = func(s string) {
		if !in.updating && in.current.Type == domain.ElementField {
			if store.UpdateField(in.current.ID, editor.FieldPatch{Value: editor.Ptr(s)}) {
				in.pending = "Edit text"
			}
		}
	}
	in.bold = widget.NewCheck("Bold", func(b bool) {
		in.styleField("Bold", editor.FieldPatch{Bold: editor.Ptr(b)})
	})
	in.italic = widget.NewCheck("Italic", func(b bool) {
		in.styleField("Italic", editor.FieldPatch{Italic: editor.Ptr(b)})
	})
	in.align = widget.NewSelect([]string{string(domain.AlignLeft), string(domain.AlignCenter), string(domain.AlignRight)}, func(s string) {
		in.styleField("Align "+s, editor.FieldPatch{Align: editor.Ptr(domain.Align(s))})
	})

	in.row = widget.NewSelect(nil, func(string) { in.showCell() })
	in.col = widget.NewSelect(nil, func(string) { in.showCell() })
	in.cell = newCommitEntry(false, in.flush)
	in.cell.SetPlaceHolder("Cell")
	in.cell.OnChanged = func(s string) {
		if in.updating || in.current.Type != domain.ElementTable {
			return
		}
		if store.UpdateTableCell(in.current.ID, in.row.SelectedIndex(), in.col.SelectedIndex(), s) {
			in.pending = "Edit cell"
		}
	}
	in.table = container.NewVBox(
		container.NewGridWithColumns(2, in.row, in.col),
		in.cell,
		container.NewGridWithColumns(2,
			widget.NewButton("+ Row", func() { in.flush(); store.AddTableRow(in.current.ID) }),
			widget.NewButton("+ Column", func() { in.flush(); store.AddTableColumn(in.current.ID) }),
		),
		container.NewGridWithColumns(2,
			widget.NewButton("- Row", func() { in.flush(); store.RemoveTableRow(in.current.ID, in.row.SelectedIndex()) }),
			widget.NewButton("- Column", func() { in.flush(); store.RemoveTableColumn(in.current.ID, in.col.SelectedIndex()) }),
		),
	)
	in.box = container.NewVBox(widget.NewLabel("Document"), in.title, widget.NewSeparator(), in.text, in.bold, in.italic, in.align, in.table)
	in.show(store.State())
	return in
}

// styleField applies a formatting change and commits it right away.
func (in *inspector) styleField(desc string, p editor.FieldPatch) {
	if in.updating || in.current.Type != domain.ElementField {
		return
	}
	in.flush()
	if in.store.UpdateField(in.current.ID, p) {
		in.store.SaveToHistory(desc)
	}
}

// flush commits a pending text or cell edit. Frontends call it before
// undo and redo so the edit is not lost.
func (in *inspector) flush() {
	if in.pending == "" {
		return
	}
	desc := in.pending
	in.pending = ""
	in.store.SaveToHistory(desc)
}

func (in *inspector) show(s editor.State) {
	if s.Selection != in.current {
		in.flush()
	}
	in.updating = true
	defer func() { in.updating = false }()
	if in.title.Text != s.Document.Title {
		in.title.SetText(s.Document.Title)
	}
	in.current = s.Selection
	fieldWidgets := []fyne.CanvasObject{in.text, in.bold, in.italic, in.align}
	for _, o := range fieldWidgets {
		o.Hide()
	}
	in.table.Hide()
	el, ok := in.store.Element(s.Selection)
	if !ok {
		return
	}
	switch {
	case el.Field != nil:
		for _, o := range fieldWidgets {
			o.Show()
		}
		if el.Field.Kind != domain.KindText {
			in.text.Hide()
		} else if in.text.Text != el.Field.Value {
			in.text.SetText(el.Field.Value)
		}
		in.bold.SetChecked(el.Field.Bold)
		in.italic.SetChecked(el.Field.Italic)
		in.align.SetSelected(string(el.Field.Align))
	case el.Table != nil:
		in.table.Show()
		setIndexOptions(in.row, "Row", len(el.Table.Rows))
		setIndexOptions(in.col, "Column", el.Table.Columns())
		in.fillCell(el.Table)
	}
}

// showCell refreshes the cell entry after the row or column changed.
func (in *inspector) showCell() {
	if in.updating {
		return
	}
	in.flush()
	el, ok := in.store.Element(in.current)
	if !ok || el.Table == nil {
		return
	}
	in.updating = true
	defer func() { in.updating = false }()
	in.fillCell(el.Table)
}

func (in *inspector) fillCell(t *domain.Table) {
	r, c := in.row.SelectedIndex(), in.col.SelectedIndex()
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= t.Columns() {
		return
	}
	if in.cell.Text != t.Rows[r][c] {
		in.cell.SetText(t.Rows[r][c])
	}
}

// setIndexOptions lists "<label> 1".."<label> n" and keeps the selected
// index when it is still valid.
func setIndexOptions(sel *widget.Select, label string, n int) {
	keep := sel.SelectedIndex()
	if len(sel.Options) != n {
		opts := make([]string, n)
		for i := range opts {
			opts[i] = fmt.Sprintf("%s %d", label, i+1)
		}
		sel.SetOptions(opts)
	}
	switch {
	case n == 0:
		sel.ClearSelected()
	case keep < 0:
		sel.SetSelectedIndex(0)
	case keep >= n:
		sel.SetSelectedIndex(n - 1)
	default:
		sel.SetSelectedIndex(keep)
	}
}
