/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file and an autosave of the
// document being edited.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"letterforge/internal/domain"
	applog "letterforge/internal/log"
	"letterforge/internal/storage"
	"letterforge/internal/telemetry"
	"letterforge/internal/version"
)

// exitFn lets tests intercept the exit.
var exitFn = os.Exit

// Session is what Recover saves. Both fields are optional.
type Session struct {
	Store *storage.Store
	// Current returns the document being edited.
	Current func() domain.Document
}

// Recover captures a panic, logs it with the stack, writes a crash report
// and autosaves the current document, then exits with code 2.
//
// Usage: defer crash.Recover(sess)
func Recover(sess *Session) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var doc *domain.Document
	if sess != nil && sess.Current != nil {
		d, ok := snapshot(sess.Current)
		if ok {
			doc = &d
		}
	}
	reportPath, err := writeReport(sess, doc, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if sess != nil && sess.Store != nil && doc != nil {
		if path, err := sess.Store.AutosaveCrash(*doc); err != nil {
			l.Error("crash autosave failed", slog.Any("err", err))
		} else {
			l.Info("crash autosave written", slog.String("path", path))
		}
	}
	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// snapshot reads the current document; a second panic while doing so is
// swallowed.
func snapshot(current func() domain.Document) (d domain.Document, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return current(), true
}

func reportDir(sess *Session) string {
	if sess != nil && sess.Store != nil && sess.Store.Root != "" {
		dir := filepath.Join(sess.Store.Root, storage.BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir
		}
	}
	return os.TempDir()
}

func writeReport(sess *Session, doc *domain.Document, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(sess), fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "letterforge crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if sess != nil && sess.Store != nil {
		_, _ = fmt.Fprintf(&buf, "StoreRoot: %s\n", sess.Store.Root)
	}
	if doc != nil {
		// ids and counts only; document text stays local
		_, _ = fmt.Fprintf(&buf, "Document: %s (%d fields, %d tables)\n", doc.ID, len(doc.Fields), len(doc.Tables))
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
