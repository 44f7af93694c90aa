/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"letterforge/internal/domain"
	"letterforge/internal/storage"
)

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	os.Stderr = devnull
	t.Cleanup(func() {
		os.Stderr = old
		_ = devnull.Close()
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func TestWriteReportInTempWithoutSession(t *testing.T) {
	path, err := writeReport(nil, nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "letterforge crash report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("report content: %s", s)
	}
}

func TestRecoverWritesReportAndAutosave(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	st, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	doc := domain.Document{ID: storage.NewID(), Title: "Secret offer", Fields: []domain.Field{{ID: 1, Kind: domain.KindText, X: 40, Y: 40, W: 100, H: 40, Value: "confidential"}}}
	sess := &Session{Store: st, Current: func() domain.Document { return doc }}

	func() {
		defer Recover(sess)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	ents, _ := os.ReadDir(filepath.Join(st.Root, storage.BackupsDirName))
	var report, autosave string
	for _, e := range ents {
		switch {
		case strings.HasPrefix(e.Name(), "crash-"):
			report = filepath.Join(st.Root, storage.BackupsDirName, e.Name())
		case strings.HasPrefix(e.Name(), doc.ID+".crash-"):
			autosave = e.Name()
		}
	}
	if report == "" || autosave == "" {
		t.Fatalf("missing files: report=%q autosave=%q", report, autosave)
	}
	b, _ := os.ReadFile(report)
	if !strings.Contains(string(b), "Panic: boom") || !strings.Contains(string(b), doc.ID) {
		t.Fatalf("report content: %s", b)
	}
	if strings.Contains(string(b), "confidential") {
		t.Fatalf("report leaked document text")
	}
}

func TestRecoverSurvivesPanickingSnapshot(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	sess := &Session{Current: func() domain.Document { panic("again") }}
	func() {
		defer Recover(sess)
		panic("first")
	}()
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	code := interceptExit(t)
	func() {
		defer Recover(nil)
	}()
	if *code != -1 {
		t.Fatalf("exit called without panic")
	}
}
