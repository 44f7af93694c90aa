/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"letterforge/internal/backend"
	"letterforge/internal/domain"
	"letterforge/internal/editor"
	"letterforge/internal/export"
	"letterforge/internal/history"
	"letterforge/internal/ingest"
	"letterforge/internal/storage"
	"letterforge/internal/telemetry"
	"letterforge/internal/templatepack"
	"letterforge/internal/ui"
)

// open returns the template store and its index. The caller closes the index.
func (a *cli) open(ctx context.Context) (*storage.Store, *storage.Index, error) {
	s, err := storage.Open(a.cfg.Storage.Root)
	if err != nil {
		return nil, nil, err
	}
	a.sess.Store = s
	ix, err := storage.OpenOrRebuildIndex(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	return s, ix, nil
}

func (a *cli) newEditor(ctx context.Context, ix *storage.Index, id string) *editor.Store {
	return editor.New(editor.Options{
		Page:         a.cfg.Page.GeometryPage(),
		HistoryLimit: a.cfg.History.Limit,
		OnCommit: func(e history.Entry) {
			if err := ix.SaveSnapshot(ctx, id, e); err != nil {
				a.log.Warn("persist history entry failed", slog.String("id", id), slog.Any("err", err))
			}
		},
	})
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (a *cli) cmdNew(ctx context.Context, args []string) error {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return errUsage
	}
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	doc, err := s.Create(domain.Document{Title: title})
	if err != nil {
		return err
	}
	if err := ix.Upsert(ctx, doc); err != nil {
		return err
	}
	a.log.Info("template created", slog.String("id", doc.ID), slog.String("title", title))
	fmt.Fprintln(a.out, doc.ID)
	return nil
}

func (a *cli) printResults(rs []storage.SearchResult, snippets bool) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range rs {
		line := fmt.Sprintf("%s\t%s\t%s\t%d fields\t%d tables", r.ID, r.Title, r.UpdatedAt.Local().Format("2006-01-02 15:04"), r.Fields, r.Tables)
		if snippets && r.Snippet != "" {
			line += "\t" + r.Snippet
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

func (a *cli) cmdList(ctx context.Context, _ []string) error {
	_, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	rs, err := ix.Search(ctx, storage.SearchQuery{})
	if err != nil {
		return err
	}
	if len(rs) == 0 {
		fmt.Fprintln(a.out, "No templates.")
		return nil
	}
	a.printResults(rs, false)
	return nil
}

func (a *cli) cmdSearch(ctx context.Context, args []string) error {
	fs := newFlags("search", a.out)
	raw := fs.Bool("raw", false, "pass the query to FTS5 unchanged")
	limit := fs.Int("limit", 20, "maximum results")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	q := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(q) == "" {
		return errUsage
	}
	_, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	rs, err := ix.Search(ctx, storage.SearchQuery{Text: q, Raw: *raw, Limit: *limit})
	if err != nil {
		return err
	}
	a.printResults(rs, true)
	return nil
}

func (a *cli) cmdShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	doc, err := s.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s)\n", doc.Title, doc.ID)
	for _, e := range doc.Elements() {
		r := e.Rect
		fmt.Fprintf(a.out, "  %-10s %-28s at %4.0f,%4.0f  %4.0fx%-4.0f\n", e.Ref, editor.Describe(e), r.X, r.Y, r.W, r.H)
	}
	return nil
}

func (a *cli) cmdImport(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	id, src := args[0], args[1]
	var in io.Reader = os.Stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	content, err := ingest.Segment(in)
	if err != nil {
		return err
	}
	if content.Empty() {
		return fmt.Errorf("nothing to import in %s", src)
	}
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()

	var doc domain.Document
	if id == "new" {
		title := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		if src == "-" {
			title = "Imported"
		}
		if doc, err = s.Create(domain.Document{Title: title}); err != nil {
			return err
		}
	} else if doc, err = s.Load(id); err != nil {
		return err
	}

	es := a.newEditor(ctx, ix, doc.ID)
	es.Load(doc)
	a.current(es.Document)
	refs := es.ImportParsedContent(content.TextBlocks, content.Tables)

	out := es.Document()
	out.ID = doc.ID
	if err := s.Save(&out); err != nil {
		return err
	}
	if err := ix.Upsert(ctx, out); err != nil {
		return err
	}
	if err := ix.InvalidatePreviews(ctx, out.ID); err != nil {
		return err
	}
	skipped := len(content.TextBlocks) + len(content.Tables) - len(refs)
	telemetry.Default().Imported(len(content.TextBlocks), len(content.Tables), skipped)
	a.log.Info("content imported", slog.String("id", out.ID), slog.Int("placed", len(refs)), slog.Int("skipped", skipped))
	fmt.Fprintf(a.out, "Placed %d elements into %s\n", len(refs), out.ID)
	return nil
}

func (a *cli) cmdExport(ctx context.Context, args []string) error {
	fs := newFlags("export", a.out)
	preset := fs.String("preset", a.cfg.Export.Preset, "print, office or web")
	outDir := fs.String("out", a.cfg.Export.OutDir, "output directory")
	formats := fs.String("formats", "", "comma separated formats overriding the preset (pdf,docx,png)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	doc, err := s.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	opt := export.BatchOptions{
		Preset:   export.PresetName(*preset),
		OutDir:   *outDir,
		Page:     a.cfg.Page.GeometryPage(),
		Provider: a.provider,
		Scale:    a.cfg.Export.PNGScale,
	}
	if *formats != "" {
		opt.Formats = strings.Split(*formats, ",")
	}
	start := time.Now()
	paths, err := export.BatchExport(doc, opt)
	if err != nil {
		return err
	}
	took := time.Since(start)
	for _, p := range paths {
		size := 0
		if st, err := os.Stat(p); err == nil {
			size = int(st.Size())
		}
		telemetry.Default().Exported(strings.TrimPrefix(filepath.Ext(p), "."), *preset, size, took)
		fmt.Fprintln(a.out, p)
	}
	return nil
}

func (a *cli) cmdHistory(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	_, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	entries, err := ix.ListSnapshots(ctx, args[0], a.cfg.History.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No history.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d fields\t%d tables\n", e.TS.Local().Format("2006-01-02 15:04:05"), e.Description, len(e.Snapshot.Fields), len(e.Snapshot.Tables))
	}
	return tw.Flush()
}

func (a *cli) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	if err := s.Delete(args[0]); err != nil {
		return err
	}
	return ix.Remove(ctx, args[0])
}

func (a *cli) repo(ctx context.Context) (*backend.Repo, error) {
	return backend.Open(ctx, backend.Options{
		DSN:      a.cfg.Backend.DSN,
		User:     a.cfg.Backend.User,
		Password: a.password,
		Timeout:  a.cfg.Backend.Timeout(),
	})
}

func (a *cli) cmdPublish(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	s, err := storage.Open(a.cfg.Storage.Root)
	if err != nil {
		return err
	}
	r, err := a.repo(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	versions, err := r.Publish(ctx, s, args...)
	for _, id := range args {
		if v, ok := versions[id]; ok {
			fmt.Fprintf(a.out, "%s\tv%d\n", id, v)
		}
	}
	return err
}

func (a *cli) cmdPull(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	r, err := a.repo(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Pull(ctx, s, ix, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Pulled", args[0])
	return nil
}

func (a *cli) cmdRemote(ctx context.Context, args []string) error {
	fs := newFlags("remote", a.out)
	q := fs.String("search", "", "full text query")
	limit := fs.Int("limit", 50, "maximum results")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	r, err := a.repo(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	if *q != "" {
		rs, err := r.Search(ctx, storage.SearchQuery{Text: *q, Limit: *limit})
		if err != nil {
			return err
		}
		a.printResults(rs, true)
		return nil
	}
	list, err := r.List(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\tv%d\t%s\n", t.ID, t.Title, t.Version, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *cli) cmdPack(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	sub, file := args[0], args[1]
	switch sub {
	case "inspect":
		man, err := templatepack.Inspect(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s (created %s, letterforge %s)\n", man.Name, man.Created.Local().Format("2006-01-02"), man.AppVersion)
		for _, e := range man.Templates {
			fmt.Fprintf(a.out, "  %s  %s\n", e.ID, e.Title)
		}
		return nil
	case "export":
		s, err := storage.Open(a.cfg.Storage.Root)
		if err != nil {
			return err
		}
		if filepath.Ext(file) == "" {
			file += templatepack.Ext
		}
		man, err := templatepack.Export(s, args[2:], file, templatepack.Options{
			Name:     strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
			Previews: true,
			Page:     a.cfg.Page.GeometryPage(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote %d templates to %s\n", len(man.Templates), file)
		return nil
	case "install":
		s, ix, err := a.open(ctx)
		if err != nil {
			return err
		}
		defer ix.Close()
		ids, err := templatepack.Install(s, file)
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, err := s.Load(id)
			if err != nil {
				return err
			}
			if err := ix.Upsert(ctx, doc); err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
		}
		return nil
	}
	return errUsage
}

func (a *cli) cmdWatch(ctx context.Context, _ []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	s, ix, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()
	m := storage.Maintenance{
		Index:           ix,
		KeepSnapshots:   a.cfg.Storage.KeepSnapshots,
		MaxPreviewBytes: a.cfg.Storage.PreviewsMaxBytes,
	}
	c, err := m.Schedule(a.cfg.Storage.Maintenance)
	if err != nil {
		return err
	}
	defer c.Stop()
	a.log.Info("watching templates", slog.String("dir", s.Dir()), slog.String("maintenance", a.cfg.Storage.Maintenance))
	fmt.Fprintln(a.out, "Watching", s.Dir(), "(Ctrl+C to stop)")
	return storage.SyncIndex(ctx, s, ix)
}

func (a *cli) cmdUI(_ context.Context, args []string) error {
	opts := ui.Options{
		StoreRoot:    a.cfg.Storage.Root,
		Page:         a.cfg.Page.GeometryPage(),
		HistoryLimit: a.cfg.History.Limit,
		ExportDir:    a.cfg.Export.OutDir,
	}
	if len(args) > 0 {
		opts.TemplateID = args[0]
	}
	return ui.Run(opts)
}
