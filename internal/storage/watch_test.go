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
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan Event, id string, op EventOp) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.ID == id && ev.Op == op {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s %s", op, id)
		}
	}
}

func TestWatchReportsChangesAndRemovals(t *testing.T) {
	old := WatchDebounce
	WatchDebounce = 20 * time.Millisecond
	t.Cleanup(func() { WatchDebounce = old })

	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan Event, 16)
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, func(ev Event) { events <- ev }) }()
	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	doc, err := s.Create(sampleTemplate("watched"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitEvent(t, events, doc.ID, Changed)
	if err := s.Delete(doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	waitEvent(t, events, doc.ID, Removed)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Watch did not stop")
	}
}

func TestSyncIndexFollowsFiles(t *testing.T) {
	old := WatchDebounce
	WatchDebounce = 20 * time.Millisecond
	t.Cleanup(func() { WatchDebounce = old })

	s := openStore(t)
	ix := openIndex(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = SyncIndex(ctx, s, ix) }()
	time.Sleep(100 * time.Millisecond)

	doc, err := s.Create(sampleTemplate("synced letter"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	eventually(t, func() bool {
		res, _ := ix.Search(ctx, SearchQuery{Text: "synced"})
		return len(res) == 1 && res[0].ID == doc.ID
	})
	if err := s.Delete(doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	eventually(t, func() bool {
		n, _ := ix.Count(ctx)
		return n == 0
	})
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestEventOpString(t *testing.T) {
	if Changed.String() != "changed" || Removed.String() != "removed" {
		t.Fatalf("unexpected names %s %s", Changed, Removed)
	}
}
