/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"letterforge/internal/domain"
	applog "letterforge/internal/log"
	"letterforge/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds the derived index data under the store root.
	IndexDirName  = ".lf"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it together with a
	// new step in runMigrations.
	schemaVersion = 2

	// tsLayout is fixed width so stored timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// IndexPath returns the full path to the index database of a store root.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// Index is the SQLite catalog of a template store: summaries, full text
// search, preview thumbnails and persisted history snapshots. It is derived
// from the template files and can be rebuilt at any time.
type Index struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// OpenIndex creates or opens the index of a store root, enables WAL mode and
// brings the schema up to date.
func OpenIndex(root string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("store root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return &Index{db: db, path: path, log: l}, nil
}

// Close releases the database.
func (ix *Index) Close() error { return ix.db.Close() }

// Path is the database file.
func (ix *Index) Path() string { return ix.path }

// SchemaVersion reports the schema version recorded in the database.
func (ix *Index) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := ix.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at version 1 and migrate forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			seq        INTEGER PRIMARY KEY,
			id         TEXT    NOT NULL UNIQUE,
			title      TEXT    NOT NULL,
			body       TEXT    NOT NULL,
			updated_at TEXT    NOT NULL,
			fields     INTEGER NOT NULL DEFAULT 0,
			tables     INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_templates USING fts5(
			title,
			body,
			content='templates',
			content_rowid='seq',
			tokenize = 'unicode61'
		);`,
		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			template_id TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			thumb_blob  BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(template_id, w, h);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id          INTEGER PRIMARY KEY,
			template_id TEXT    NOT NULL,
			ts          TEXT    NOT NULL,
			description TEXT    NOT NULL,
			blob        BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_template_ts ON snapshots(template_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS templates_ai AFTER INSERT ON templates BEGIN
			INSERT INTO fts_templates(rowid, title, body) VALUES (new.seq, new.title, new.body);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS templates_ad AFTER DELETE ON templates BEGIN
			INSERT INTO fts_templates(fts_templates, rowid, title, body) VALUES ('delete', old.seq, old.title, old.body);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS templates_au AFTER UPDATE ON templates BEGIN
			INSERT INTO fts_templates(fts_templates, rowid, title, body) VALUES ('delete', old.seq, old.title, old.body);
			INSERT INTO fts_templates(rowid, title, body) VALUES (new.seq, new.title, new.body);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
				`CREATE INDEX IF NOT EXISTS idx_templates_updated ON templates(updated_at);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// BodyText collects the searchable text of a document: text field values
// and table cells, one per line.
func BodyText(d domain.Document) string {
	var parts []string
	for _, f := range d.Fields {
		if f.Kind == domain.KindText {
			if s := strings.TrimSpace(f.Value); s != "" {
				parts = append(parts, s)
			}
		}
	}
	for _, t := range d.Tables {
		for _, row := range t.Rows {
			if s := strings.TrimSpace(strings.Join(row, " ")); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// language=SQL
// dialect=SQLite
const upsertTemplateSQL = `INSERT INTO templates(id, title, body, updated_at, fields, tables) VALUES(?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET title=excluded.title, body=excluded.body, updated_at=excluded.updated_at,
	fields=excluded.fields, tables=excluded.tables`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, d domain.Document) error {
	_, err := db.ExecContext(ctx, upsertTemplateSQL, d.ID, d.Title, BodyText(d),
		d.UpdatedAt.UTC().Format(tsLayout), len(d.Fields), len(d.Tables))
	if err != nil {
		return fmt.Errorf("index template %s: %w", d.ID, err)
	}
	return nil
}

// Upsert adds or refreshes the catalog row of a document.
func (ix *Index) Upsert(ctx context.Context, d domain.Document) error {
	if d.ID == "" {
		return errors.New("document has no id")
	}
	return upsert(ctx, ix.db, d)
}

// Remove drops a template and everything cached for it.
func (ix *Index) Remove(ctx context.Context, id string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{
		`DELETE FROM templates WHERE id=?`,
		`DELETE FROM previews WHERE template_id=?`,
		`DELETE FROM snapshots WHERE template_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("remove %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of indexed templates.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return n, nil
}

// Rebuild replaces the catalog with the templates currently in s. Previews
// and snapshots of templates that no longer exist are dropped.
func (ix *Index) Rebuild(ctx context.Context, s *Store) (int, error) {
	ids, err := s.IDs()
	if err != nil {
		return 0, err
	}
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		d, err := s.Load(id)
		if err != nil {
			ix.log.Warn("skip unreadable template", slog.String("id", id), slog.Any("err", err))
			continue
		}
		docs = append(docs, d)
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM templates`); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear templates: %w", err)
	}
	for _, d := range docs {
		if err := upsert(ctx, tx, d); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	for _, q := range []string{
		`DELETE FROM previews WHERE template_id NOT IN (SELECT id FROM templates)`,
		`DELETE FROM snapshots WHERE template_id NOT IN (SELECT id FROM templates)`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("prune orphans: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	ix.log.Info("index rebuilt", slog.Int("templates", len(docs)))
	return len(docs), nil
}

// Healthy runs SQLite's quick_check and reads one row of the catalog table.
func (ix *Index) Healthy(ctx context.Context) bool {
	var chk string
	if err := ix.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		return false
	}
	if _, err := ix.db.ExecContext(ctx, `SELECT 1 FROM templates LIMIT 1;`); err != nil {
		return false
	}
	return true
}

// OpenOrRebuildIndex opens the index of s and rebuilds it from the template
// files when it is missing, empty or corrupt. A corrupt file is backed up
// before being replaced.
func OpenOrRebuildIndex(ctx context.Context, s *Store) (*Index, error) {
	path := IndexPath(s.Root)
	ix, err := OpenIndex(s.Root)
	if err == nil && !ix.Healthy(ctx) {
		_ = ix.Close()
		err = errors.New("index failed health check")
	}
	if err != nil {
		backupIndexFile(path)
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			_ = os.Remove(p)
		}
		if ix, err = OpenIndex(s.Root); err != nil {
			return nil, err
		}
		if _, err := ix.Rebuild(ctx, s); err != nil {
			_ = ix.Close()
			return nil, err
		}
		return ix, nil
	}
	n, err := ix.Count(ctx)
	if err != nil {
		_ = ix.Close()
		return nil, err
	}
	if n == 0 {
		if _, err := ix.Rebuild(ctx, s); err != nil {
			_ = ix.Close()
			return nil, err
		}
	}
	return ix, nil
}

// backupIndexFile copies the current index file into .lf/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}
