/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend is a shared template repository on PostgreSQL. Teams
// publish templates from their local store and pull them into others.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"letterforge/internal/domain"
	applog "letterforge/internal/log"
	"letterforge/internal/storage"
)

var (
	// ErrNoDSN is returned when no connection string is configured.
	ErrNoDSN = errors.New("backend: no DSN configured")
	// ErrNotFound is returned for ids the repository does not hold.
	ErrNotFound = errors.New("backend: template not found")
	// ErrConflict is returned by Upsert when the expected version is stale.
	ErrConflict = errors.New("backend: version conflict")
)

// Options configure Open. Password, when set, replaces the DSN's password;
// it normally comes from the OS keyring.
type Options struct {
	DSN      string
	User     string
	Password string
	Timeout  time.Duration
}

// Repo is an open connection to the repository.
type Repo struct {
	db      *sql.DB
	log     *slog.Logger
	timeout time.Duration
}

// Remote is the list view of a published template.
type Remote struct {
	ID        string
	Title     string
	Version   int64
	Fields    int
	Tables    int
	UpdatedAt time.Time
}

// Open connects, pings and migrates the schema.
func Open(ctx context.Context, opt Options) (*Repo, error) {
	l := applog.WithComponent("backend")
	if strings.TrimSpace(opt.DSN) == "" {
		return nil, ErrNoDSN
	}
	cfg, err := pgx.ParseConfig(opt.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opt.User != "" {
		cfg.User = opt.User
	}
	if opt.Password != "" {
		cfg.Password = opt.Password
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 15 * time.Second
	}
	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(4)
	r := &Repo{db: db, log: l.With(slog.String("host", cfg.Host), slog.String("database", cfg.Database)), timeout: opt.Timeout}
	ctx, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := applyMigrations(ctx, db, r.log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.log.Debug("backend ready")
	return r, nil
}

// Close releases the pool.
func (r *Repo) Close() error { return r.db.Close() }

// Ping checks the connection.
func (r *Repo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

// Upsert publishes doc and returns the repository version it now has. With
// expect > 0 the write only succeeds while the stored version equals expect;
// otherwise ErrConflict is returned. Every write is kept as a revision.
func (r *Repo) Upsert(ctx context.Context, doc domain.Document, expect int64) (int64, error) {
	if doc.ID == "" {
		return 0, errors.New("document has no id")
	}
	if err := doc.Validate(); err != nil {
		return 0, fmt.Errorf("validate %s: %w", doc.ID, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM templates WHERE id=$1 FOR UPDATE`, doc.ID).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cur = 0
	case err != nil:
		return 0, fmt.Errorf("read version: %w", err)
	}
	if expect > 0 && cur != expect {
		return cur, fmt.Errorf("%w: %s has version %d, expected %d", ErrConflict, doc.ID, cur, expect)
	}
	next := cur + 1
	// dialect=PostgreSQL
	if _, err := tx.ExecContext(ctx, `INSERT INTO templates(id, title, body, doc, fields, tables, version, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, body=excluded.body, doc=excluded.doc,
			fields=excluded.fields, tables=excluded.tables, version=excluded.version, updated_at=now()`,
		doc.ID, doc.Title, storage.BodyText(doc), string(raw), len(doc.Fields), len(doc.Tables), next); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO template_revisions(template_id, version, doc) VALUES($1,$2,$3)`, doc.ID, next, string(raw)); err != nil {
		return 0, fmt.Errorf("record revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.log.Info("template published", slog.String("id", doc.ID), slog.Int64("version", next))
	return next, nil
}

// Get returns a template and its version.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var raw []byte
	var ver int64
	err := r.db.QueryRowContext(ctx, `SELECT doc, version FROM templates WHERE id=$1`, id).Scan(&raw, &ver)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Document{}, 0, fmt.Errorf("get %s: %w", id, err)
	}
	var d domain.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Document{}, 0, fmt.Errorf("decode %s: %w", id, err)
	}
	return d, ver, nil
}

// Revision returns one stored version of a template.
func (r *Repo) Revision(ctx context.Context, id string, version int64) (domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM template_revisions WHERE template_id=$1 AND version=$2`, id, version).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%w: %s@%d", ErrNotFound, id, version)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("revision %s@%d: %w", id, version, err)
	}
	var d domain.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s@%d: %w", id, version, err)
	}
	return d, nil
}

// List returns published templates, most recently updated first.
func (r *Repo) List(ctx context.Context, limit int) ([]Remote, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, version, fields, tables, updated_at FROM templates ORDER BY updated_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Remote
	for rows.Next() {
		var t Remote
		if err := rows.Scan(&t.ID, &t.Title, &t.Version, &t.Fields, &t.Tables, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a template and its revisions.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
