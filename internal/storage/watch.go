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
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp tells what happened to a template file.
type EventOp int

const (
	Changed EventOp = iota
	Removed
)

func (o EventOp) String() string {
	if o == Removed {
		return "removed"
	}
	return "changed"
}

// Event is a settled change of one template file.
type Event struct {
	ID string
	Op EventOp
}

// WatchDebounce is how long a file has to stay quiet before an event fires.
var WatchDebounce = 300 * time.Millisecond

// Watch reports changes of template files until ctx is cancelled. Bursts of
// writes to one file collapse into a single event; whether it is Changed or
// Removed is decided when the burst settles. fn runs on the watching
// goroutine, one event at a time.
func (s *Store) Watch(ctx context.Context, fn func(Event)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", s.Dir(), err)
	}
	s.log.Info("watching templates", slog.String("dir", s.Dir()))

	fire := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, isTemplate := IDFromPath(ev.Name)
			if !isTemplate || ev.Op == fsnotify.Chmod {
				continue
			}
			if t, exists := timers[id]; exists {
				t.Stop()
			}
			timers[id] = time.AfterFunc(WatchDebounce, func() {
				select {
				case fire <- id:
				case <-ctx.Done():
				}
			})
		case id := <-fire:
			delete(timers, id)
			op := Changed
			if _, err := os.Stat(s.Path(id)); errors.Is(err, os.ErrNotExist) {
				op = Removed
			}
			fn(Event{ID: id, Op: op})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", slog.Any("err", err))
		}
	}
}

// SyncIndex keeps ix in step with the template files until ctx is
// cancelled. Changed templates are re-indexed and their previews dropped.
func SyncIndex(ctx context.Context, s *Store, ix *Index) error {
	return s.Watch(ctx, func(ev Event) {
		l := s.log.With(slog.String("id", ev.ID), slog.String("op", ev.Op.String()))
		var err error
		switch ev.Op {
		case Removed:
			err = ix.Remove(ctx, ev.ID)
		default:
			doc, lerr := s.Load(ev.ID)
			if lerr != nil {
				err = lerr
				break
			}
			if err = ix.Upsert(ctx, doc); err == nil {
				err = ix.InvalidatePreviews(ctx, ev.ID)
			}
		}
		if err != nil {
			l.Warn("index sync failed", slog.Any("err", err))
			return
		}
		l.Info("index synced")
	})
}
