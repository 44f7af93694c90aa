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
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPreviewsMaxBytes caps the preview cache when LF_PREVIEWS_MAX_BYTES
// is unset.
const DefaultPreviewsMaxBytes = 64 * 1024 * 1024

// GetPreview returns the cached thumbnail of a template at w×h, or nil when
// none is stored. A hit refreshes its access time.
func (ix *Index) GetPreview(ctx context.Context, id string, w, h int) ([]byte, error) {
	var blob []byte
	err := ix.db.QueryRowContext(ctx, `SELECT thumb_blob FROM previews WHERE template_id=? AND w=? AND h=?`, id, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)
	_, _ = ix.db.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE template_id=? AND w=? AND h=?`, now, id, w, h)
	return blob, nil
}

// PutPreview stores a thumbnail and evicts least recently used previews
// beyond the configured cap.
func (ix *Index) PutPreview(ctx context.Context, id string, w, h int, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("empty preview")
	}
	now := time.Now().UTC().Format(tsLayout)
	_, err := ix.db.ExecContext(ctx, `INSERT INTO previews(template_id,w,h,thumb_blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(template_id,w,h) DO UPDATE SET thumb_blob=excluded.thumb_blob, size=excluded.size,
		updated_at=excluded.updated_at, last_access=excluded.last_access`,
		id, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if capBytes := MaxPreviewsBytesFromEnv(); capBytes > 0 {
		return ix.EvictPreviewsToFit(ctx, capBytes)
	}
	return nil
}

// InvalidatePreviews drops every cached size of a template.
func (ix *Index) InvalidatePreviews(ctx context.Context, id string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM previews WHERE template_id=?`, id); err != nil {
		return fmt.Errorf("invalidate previews: %w", err)
	}
	return nil
}

// GetOrCreatePreview returns a cached preview or generates and stores one.
func (ix *Index) GetOrCreatePreview(ctx context.Context, id string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := ix.GetPreview(ctx, id, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	if err := ix.PutPreview(ctx, id, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictPreviewsToFit deletes least recently used rows until the total size
// is at most capBytes.
func (ix *Index) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := ix.TotalPreviewBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := ix.db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() && cur > capBytes {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// close the cursor before writing
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM previews WHERE id IN (` + placeholders(len(victims)) + `)`
	if _, err := ix.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns the bytes held by the preview cache.
func (ix *Index) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := ix.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads LF_PREVIEWS_MAX_BYTES.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv("LF_PREVIEWS_MAX_BYTES")
	if v == "" {
		return DefaultPreviewsMaxBytes
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return DefaultPreviewsMaxBytes
	}
	return n
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
