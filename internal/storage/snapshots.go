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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"letterforge/internal/domain"
	"letterforge/internal/history"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(template_id, ts, description, blob) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, description, blob FROM snapshots WHERE template_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE template_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE template_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// SaveSnapshot persists a history entry of a template.
func (ix *Index) SaveSnapshot(ctx context.Context, id string, e history.Entry) error {
	blob, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	ts := e.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := ix.db.ExecContext(ctx, insertSnapshotSQL, id, ts.UTC().Format(tsLayout), e.Description, blob); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest persisted entry of a template. The bool
// is false when there is none.
func (ix *Index) LatestSnapshot(ctx context.Context, id string) (history.Entry, bool, error) {
	es, err := ix.ListSnapshots(ctx, id, 1)
	if err != nil || len(es) == 0 {
		return history.Entry{}, false, err
	}
	return es[0], true, nil
}

// ListSnapshots returns up to limit entries of a template, newest first.
func (ix *Index) ListSnapshots(ctx context.Context, id string, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	rows, err := ix.db.QueryContext(ctx, listSnapshotsSQL, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []history.Entry
	for rows.Next() {
		var tsStr, desc string
		var blob []byte
		if err := rows.Scan(&tsStr, &desc, &blob); err != nil {
			return nil, err
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(blob, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, history.Entry{Description: desc, Snapshot: snap, TS: ts})
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps the newest keepLast entries of a template.
func (ix *Index) PruneOldSnapshots(ctx context.Context, id string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := ix.db.ExecContext(ctx, pruneOldSnapshotsSQL, id, id, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// PruneAllSnapshots applies PruneOldSnapshots to every template.
func (ix *Index) PruneAllSnapshots(ctx context.Context, keepLast int) (int64, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT DISTINCT template_id FROM snapshots`)
	if err != nil {
		return 0, fmt.Errorf("list snapshot owners: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		n, err := ix.PruneOldSnapshots(ctx, id, keepLast)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
