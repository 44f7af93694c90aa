/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"letterforge/internal/storage"
)

// Publish uploads local templates. An empty ids list publishes every
// template in the store. It returns the new versions by id.
func (r *Repo) Publish(ctx context.Context, s *storage.Store, ids ...string) (map[string]int64, error) {
	if len(ids) == 0 {
		all, err := s.IDs()
		if err != nil {
			return nil, err
		}
		ids = all
	}
	out := make(map[string]int64, len(ids))
	var errs []error
	for _, id := range ids {
		doc, err := s.Load(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		v, err := r.Upsert(ctx, doc, 0)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[id] = v
	}
	return out, errors.Join(errs...)
}

// Pull copies a published template into the local store, replacing the
// local version. The index, when given, is refreshed.
func (r *Repo) Pull(ctx context.Context, s *storage.Store, ix *storage.Index, id string) error {
	doc, ver, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Save(&doc); err != nil {
		return fmt.Errorf("store pulled template: %w", err)
	}
	if ix != nil {
		if err := ix.Upsert(ctx, doc); err != nil {
			return err
		}
		if err := ix.InvalidatePreviews(ctx, id); err != nil {
			return err
		}
	}
	r.log.Info("template pulled", slog.String("id", id), slog.Int64("version", ver))
	return nil
}
