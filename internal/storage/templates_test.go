/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"letterforge/internal/domain"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	doc, err := s.Create(sampleTemplate("Order confirmation"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.ID == "" || doc.UpdatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", doc)
	}
	got, err := s.Load(doc.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Title != "Order confirmation" || len(got.Fields) != 2 || len(got.Tables) != 1 {
		t.Fatalf("unexpected doc: %+v", got)
	}
	if got.Tables[0].Rows[1][0] != "Stapler" || !got.Tables[0].HeaderRow {
		t.Fatalf("table not preserved: %+v", got.Tables[0])
	}
	if !got.UpdatedAt.Equal(doc.UpdatedAt) {
		t.Fatalf("timestamp %v != %v", got.UpdatedAt, doc.UpdatedAt)
	}
}

func TestSaveWritesBackupOfPreviousVersion(t *testing.T) {
	s := openStore(t)
	doc, err := s.Create(sampleTemplate("v1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc.Title = "v2"
	if err := s.Save(&doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(s.Root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	if len(ents) != 1 || !strings.HasPrefix(ents[0].Name(), doc.ID+".json.") {
		t.Fatalf("expected one backup, got %v", ents)
	}
}

func TestLoadRecoversFromBackupWhenCorrupt(t *testing.T) {
	s := openStore(t)
	doc, err := s.Create(sampleTemplate("first"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	doc.Title = "second"
	if err := s.Save(&doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(s.Path(doc.ID), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := s.Load(doc.ID)
	if err != nil {
		t.Fatalf("Load after corruption: %v", err)
	}
	if got.Title != "first" {
		t.Fatalf("expected backup content, got %q", got.Title)
	}
}

func TestLoadUnknownAndInvalidIDs(t *testing.T) {
	s := openStore(t)
	if _, err := s.Load(NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := s.Load("../../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("want ErrInvalidID, got %v", err)
	}
	if err := s.Delete(NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound on delete, got %v", err)
	}
}

func TestSaveRejectsInvalidDocument(t *testing.T) {
	s := openStore(t)
	doc := sampleTemplate("bad")
	doc.Fields[1].ID = doc.Fields[0].ID
	if _, err := s.Create(doc); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}
}

func TestListNewestFirstAndDelete(t *testing.T) {
	s := openStore(t)
	a, _ := s.Create(sampleTemplate("older"))
	time.Sleep(5 * time.Millisecond)
	b, _ := s.Create(sampleTemplate("newer"))
	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].Fields != 2 || list[0].Tables != 1 {
		t.Fatalf("summary counts: %+v", list[0])
	}
	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ids, _ := s.IDs()
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("ids after delete: %v", ids)
	}
}

func TestIDFromPath(t *testing.T) {
	id := NewID()
	if got, ok := IDFromPath("/x/templates/" + id + ".json"); !ok || got != id {
		t.Fatalf("IDFromPath = %q, %v", got, ok)
	}
	for _, p := range []string{"notes.json", "." + id + ".tmp-1-2", id + ".json.bak"} {
		if _, ok := IDFromPath(p); ok {
			t.Fatalf("IDFromPath(%q) accepted", p)
		}
	}
}

func TestStoredFileConformsToSchema(t *testing.T) {
	s := openStore(t)
	doc, err := s.Create(sampleTemplate("schema"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := os.ReadFile(s.Path(doc.ID))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := ValidateJSON(data); err != nil {
		t.Fatalf("schema: %v", err)
	}
	bad := []byte(`{"title":"x","fields":[{"id":1,"kind":"video","x":0,"y":0,"w":1,"h":1}],"tables":[]}`)
	if err := ValidateJSON(bad); !errors.Is(err, ErrSchema) {
		t.Fatalf("want ErrSchema, got %v", err)
	}
}

func TestAutosaveCrashKeepsInvalidDocument(t *testing.T) {
	s := openStore(t)
	doc := sampleTemplate("broken")
	doc.Fields = append(doc.Fields, doc.Fields[0]) // duplicate id
	path, err := s.AutosaveCrash(doc)
	if err != nil {
		t.Fatalf("AutosaveCrash: %v", err)
	}
	if !strings.Contains(filepath.Base(path), "unsaved.crash-") {
		t.Fatalf("unexpected name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "broken") {
		t.Fatalf("autosave content: %v", err)
	}
}

func TestLoadDefaultsEmptyBorderStyle(t *testing.T) {
	s := openStore(t)
	tmpl := sampleTemplate("Borders")
	tmpl.Tables[0].BorderStyle = domain.BorderFull
	doc, err := s.Create(tmpl)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	raw, err := os.ReadFile(s.Path(doc.ID))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	edited := strings.Replace(string(raw), `"borderStyle": "full"`, `"borderStyle": ""`, 1)
	if edited == string(raw) {
		t.Fatalf("border style not found in %s", raw)
	}
	if err := os.WriteFile(s.Path(doc.ID), []byte(edited), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.Load(doc.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Tables[0].BorderStyle != domain.BorderLight {
		t.Fatalf("border = %q", got.Tables[0].BorderStyle)
	}
	if err := s.Save(&got); err != nil {
		t.Fatalf("Save after load: %v", err)
	}
}
