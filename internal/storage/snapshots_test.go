/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"testing"
	"time"

	"letterforge/internal/domain"
	"letterforge/internal/history"
)

func snapshotEntry(desc string, ts time.Time, x float64) history.Entry {
	return history.Entry{
		Description: desc,
		TS:          ts,
		Snapshot: domain.Snapshot{
			Fields: []domain.Field{{ID: 1, Kind: domain.KindText, X: x, Y: 40, W: 100, H: 40, Value: desc}},
		},
	}
}

func TestSnapshotsSaveListLatest(t *testing.T) {
	ix := openIndex(t, openStore(t))
	ctx := testCtx(t)
	if _, ok, err := ix.LatestSnapshot(ctx, "doc"); ok || err != nil {
		t.Fatalf("expected no snapshot, got ok=%v err=%v", ok, err)
	}
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, d := range []string{"Move field", "Resize field", "Edit text"} {
		if err := ix.SaveSnapshot(ctx, "doc", snapshotEntry(d, base.Add(time.Duration(i)*time.Second), float64(10*i))); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	if err := ix.SaveSnapshot(ctx, "other", snapshotEntry("Add table", base, 0)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	es, err := ix.ListSnapshots(ctx, "doc", 0)
	if err != nil || len(es) != 3 {
		t.Fatalf("ListSnapshots = %d, %v", len(es), err)
	}
	if es[0].Description != "Edit text" || es[2].Description != "Move field" {
		t.Fatalf("order = %s .. %s", es[0].Description, es[2].Description)
	}
	if !es[0].TS.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("ts = %v", es[0].TS)
	}
	if es[0].Snapshot.Fields[0].X != 20 || es[0].Snapshot.Fields[0].Value != "Edit text" {
		t.Fatalf("snapshot payload = %+v", es[0].Snapshot.Fields[0])
	}
	last, ok, err := ix.LatestSnapshot(ctx, "doc")
	if err != nil || !ok || last.Description != "Edit text" {
		t.Fatalf("LatestSnapshot = %+v %v %v", last, ok, err)
	}
}

func TestPruneSnapshots(t *testing.T) {
	ix := openIndex(t, openStore(t))
	ctx := testCtx(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = ix.SaveSnapshot(ctx, "a", snapshotEntry("a", base.Add(time.Duration(i)*time.Minute), float64(i)))
		_ = ix.SaveSnapshot(ctx, "b", snapshotEntry("b", base.Add(time.Duration(i)*time.Minute), float64(i)))
	}
	n, err := ix.PruneOldSnapshots(ctx, "a", 2)
	if err != nil || n != 3 {
		t.Fatalf("PruneOldSnapshots = %d, %v", n, err)
	}
	es, _ := ix.ListSnapshots(ctx, "a", 10)
	if len(es) != 2 || es[1].Snapshot.Fields[0].X != 3 {
		t.Fatalf("kept wrong entries: %+v", es)
	}
	n, err = ix.PruneAllSnapshots(ctx, 1)
	if err != nil || n != 5 {
		t.Fatalf("PruneAllSnapshots = %d, %v", n, err)
	}
	if n, _ := ix.PruneOldSnapshots(ctx, "b", 0); n != 0 {
		t.Fatalf("keep 0 must be a no-op, pruned %d", n)
	}
}
