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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"letterforge/internal/history"
)

// DefaultMaintenanceSpec runs index upkeep every ten minutes.
const DefaultMaintenanceSpec = "@every 10m"

// Maintenance is periodic upkeep of an index: snapshot pruning, preview
// eviction and FTS optimization.
type Maintenance struct {
	Index *Index
	// KeepSnapshots per template; zero keeps history.DefaultLimit.
	KeepSnapshots int
	// MaxPreviewBytes caps the preview cache; zero reads the environment.
	MaxPreviewBytes int64
	Timeout         time.Duration
}

// Run performs one maintenance pass.
func (m Maintenance) Run(ctx context.Context) error {
	if m.Index == nil {
		return errors.New("maintenance without index")
	}
	keep := m.KeepSnapshots
	if keep <= 0 {
		keep = history.DefaultLimit
	}
	capBytes := m.MaxPreviewBytes
	if capBytes <= 0 {
		capBytes = MaxPreviewsBytesFromEnv()
	}
	pruned, err := m.Index.PruneAllSnapshots(ctx, keep)
	if err != nil {
		return err
	}
	if err := m.Index.EvictPreviewsToFit(ctx, capBytes); err != nil {
		return err
	}
	if _, err := m.Index.db.ExecContext(ctx, `INSERT INTO fts_templates(fts_templates) VALUES('optimize')`); err != nil {
		return fmt.Errorf("optimize fts: %w", err)
	}
	m.Index.log.Debug("maintenance done", slog.Int64("snapshots_pruned", pruned))
	return nil
}

// Schedule starts a cron scheduler running m on spec (standard cron syntax
// or descriptors such as "@every 10m"). Stop the returned scheduler when done.
func (m Maintenance) Schedule(spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultMaintenanceSpec
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := m.Run(ctx); err != nil {
			m.Index.log.Warn("maintenance failed", slog.Any("err", err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule maintenance %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
