/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps the bounded linear undo/redo log of the editor.
// Every entry holds a full deep copy of the document elements, so restoring
// an entry can never drift from the state that was recorded.
package history

import (
	"sync"
	"time"

	"letterforge/internal/domain"
)

// DefaultLimit is the number of entries kept when Config.Limit is unset.
const DefaultLimit = 50

// Entry is an immutable recorded document state.
type Entry struct {
	Description string
	Snapshot    domain.Snapshot
	TS          time.Time
}

// Config controls the depth cap and the clock.
type Config struct {
	// Limit is the maximum number of entries; the oldest are evicted first.
	Limit int
	// Now is used for entry timestamps; defaults to time.Now.
	Now func() time.Time
}

// Manager is a cursor over an ordered log of entries. Committing after an
// undo discards the entries past the cursor. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	entries []Entry
	index   int
}

func NewManager(cfg Config) *Manager {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, index: -1}
}

// Commit records a deep copy of s as the newest entry and moves the cursor to it.
func (m *Manager) Commit(description string, s domain.Snapshot) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Entry{Description: description, Snapshot: s.Clone(), TS: m.cfg.Now()}
	// drop the redo branch
	m.entries = append(m.entries[:m.index+1], e)
	if over := len(m.entries) - m.cfg.Limit; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	m.index = len(m.entries) - 1
	return e
}

// Reset discards the log and starts over with a single entry.
func (m *Manager) Reset(description string, s domain.Snapshot) {
	m.mu.Lock()
	m.entries = nil
	m.index = -1
	m.mu.Unlock()
	m.Commit(description, s)
}

// Undo moves the cursor back and returns a copy of the entry it now points at.
func (m *Manager) Undo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index <= 0 {
		return Entry{}, false
	}
	m.index--
	return m.entryLocked(m.index), true
}

// Redo moves the cursor forward and returns a copy of the entry it now points at.
func (m *Manager) Redo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.entries)-1 {
		return Entry{}, false
	}
	m.index++
	return m.entryLocked(m.index), true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index < len(m.entries)-1
}

// Len returns the number of entries in the log.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the cursor position, -1 when empty.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Current returns the entry under the cursor.
func (m *Manager) Current() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < 0 {
		return Entry{}, false
	}
	return m.entryLocked(m.index), true
}

// Descriptions lists entry descriptions oldest first.
func (m *Manager) Descriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Description
	}
	return out
}

func (m *Manager) entryLocked(i int) Entry {
	e := m.entries[i]
	e.Snapshot = e.Snapshot.Clone()
	return e
}
