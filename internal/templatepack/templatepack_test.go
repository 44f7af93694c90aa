/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package templatepack

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"letterforge/internal/domain"
	"letterforge/internal/geometry"
	"letterforge/internal/storage"
)

func seedStore(t *testing.T, titles ...string) (*storage.Store, []string) {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var ids []string
	for _, title := range titles {
		d, err := s.Create(domain.Document{
			Title: title,
			Fields: []domain.Field{
				{ID: 1, Kind: domain.KindText, X: 40, Y: 40, W: 200, H: 40, Value: title + " body"},
			},
			Tables: []domain.Table{
				{ID: 2, X: 40, Y: 120, W: 300, H: 64, Rows: [][]string{{"A", "B"}, {"1", "2"}}, BorderStyle: domain.BorderFull},
			},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, d.ID)
	}
	return s, ids
}

func TestExportAndInstallPack(t *testing.T) {
	src, ids := seedStore(t, "Invoice", "Reminder")
	dest := filepath.Join(t.TempDir(), "office"+Ext)
	man, err := Export(src, nil, dest, Options{Previews: true, Page: geometry.DefaultPage()})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if man.Name != "office" || len(man.Templates) != 2 {
		t.Fatalf("manifest = %+v", man)
	}
	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	_ = zr.Close()
	for _, id := range ids {
		if !names["templates/"+id+".json"] || !names["previews/"+id+".png"] {
			t.Fatalf("pack misses files for %s: %v", id, names)
		}
	}

	got, err := Inspect(dest)
	if err != nil || len(got.Templates) != 2 || got.AppVersion == "" {
		t.Fatalf("Inspect = %+v, %v", got, err)
	}

	dst, _ := storage.Open(t.TempDir())
	newIDs, err := Install(dst, dest)
	if err != nil || len(newIDs) != 2 {
		t.Fatalf("Install = %v, %v", newIDs, err)
	}
	for i, id := range newIDs {
		if id == ids[i] {
			t.Fatalf("installed template kept its id")
		}
		d, err := dst.Load(id)
		if err != nil || d.Title != man.Templates[i].Title || len(d.Tables) != 1 {
			t.Fatalf("installed doc = %+v, %v", d, err)
		}
	}
	again, err := Install(dst, dest)
	if err != nil || len(again) != 2 {
		t.Fatalf("second install = %v, %v", again, err)
	}
	if all, _ := dst.IDs(); len(all) != 4 {
		t.Fatalf("expected 4 templates after two installs, got %d", len(all))
	}
}

func TestExportSelectedIDsWithoutPreviews(t *testing.T) {
	src, ids := seedStore(t, "One", "Two", "Three")
	dest := filepath.Join(t.TempDir(), "sub", "pick"+Ext)
	man, err := Export(src, ids[1:2], dest, Options{Name: "picked"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if man.Name != "picked" || len(man.Templates) != 1 || man.Templates[0].Title != "Two" {
		t.Fatalf("manifest = %+v", man)
	}
	if _, err := os.Stat(dest + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind")
	}
}

func TestExportUnknownID(t *testing.T) {
	src, _ := seedStore(t, "One")
	if _, err := Export(src, []string{storage.NewID()}, filepath.Join(t.TempDir(), "x"+Ext), Options{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bad"+Ext)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(body))
	}
	_ = zw.Close()
	_ = f.Close()
	return p
}

func TestInstallRejectsBadPacks(t *testing.T) {
	dst, _ := storage.Open(t.TempDir())
	cases := map[string]map[string]string{
		"no manifest":      {"templates/x.json": "{}"},
		"missing template": {"manifest.yaml": "name: x\ntemplates:\n  - id: abc\n    title: X\n"},
		"schema violation": {
			"manifest.yaml":      "name: x\ntemplates:\n  - id: abc\n    title: X\n",
			"templates/abc.json": `{"id":"abc","title":"X","fields":[{"id":1,"kind":"video"}],"tables":[]}`,
		},
	}
	for name, files := range cases {
		if _, err := Install(dst, writeZip(t, files)); !errors.Is(err, ErrBadPack) {
			t.Fatalf("%s: expected ErrBadPack, got %v", name, err)
		}
	}
	if ids, _ := dst.IDs(); len(ids) != 0 {
		t.Fatalf("bad packs wrote templates: %v", ids)
	}
	notZip := filepath.Join(t.TempDir(), "plain.lfpack")
	_ = os.WriteFile(notZip, []byte("hello"), 0o644)
	if _, err := Inspect(notZip); !errors.Is(err, ErrBadPack) {
		t.Fatalf("expected ErrBadPack for non-zip, got %v", err)
	}
}
