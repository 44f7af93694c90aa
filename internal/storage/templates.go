/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"letterforge/internal/domain"
	applog "letterforge/internal/log"
)

const (
	TemplatesDirName = "templates"
	BackupsDirName   = "backups"
	templateExt      = ".json"
)

var (
	// ErrNotFound is returned for unknown template ids.
	ErrNotFound = errors.New("template not found")
	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("invalid template id")
)

// Store keeps templates as JSON files under Root/templates, one per id.
// Writes are transactional (temp file plus rename) and the previous version
// of a file is copied to Root/backups first.
type Store struct {
	Root string
	log  *slog.Logger
}

// Summary is the list view of a stored template.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
	Fields    int       `json:"fields"`
	Tables    int       `json:"tables"`
}

// Open creates root and its subfolders if needed and returns a store over it.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	for _, d := range []string{TemplatesDirName, BackupsDirName, IndexDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return &Store{Root: root, log: applog.WithComponent("storage")}, nil
}

// Dir is the folder holding the template files.
func (s *Store) Dir() string { return filepath.Join(s.Root, TemplatesDirName) }

// Path returns the file of a template id.
func (s *Store) Path(id string) string { return filepath.Join(s.Dir(), id+templateExt) }

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// NewID returns a fresh template id.
func NewID() string { return uuid.NewString() }

// Create assigns a new id to doc, saves it and returns the stored copy.
func (s *Store) Create(doc domain.Document) (domain.Document, error) {
	doc.ID = NewID()
	if err := s.Save(&doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Save validates doc and writes it, stamping UpdatedAt. Documents without an
// id get a new one.
func (s *Store) Save(doc *domain.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.ID == "" {
		doc.ID = NewID()
	}
	if err := checkID(doc.ID); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("validate %s: %w", doc.ID, err)
	}
	doc.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	data = append(data, '\n')

	path := s.Path(doc.ID)
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(s.Root, BackupsDirName, fmt.Sprintf("%s%s.%s.bak", doc.ID, templateExt, stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current template: %w", cerr)
		}
	}
	temp := filepath.Join(s.Dir(), fmt.Sprintf(".%s.tmp-%d-%d", doc.ID, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp template: %w", werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace template: %w", rerr)
	}
	s.log.Debug("template saved", slog.String("id", doc.ID), slog.Int("bytes", len(data)))
	return nil
}

// Load reads a template. A missing, unparsable or schema-violating file is
// recovered from its latest backup; ErrNotFound is returned when neither
// exists.
func (s *Store) Load(id string) (domain.Document, error) {
	if err := checkID(id); err != nil {
		return domain.Document{}, err
	}
	doc, err := readTemplate(s.Path(id))
	if err == nil {
		return doc, nil
	}
	bdoc, berr := s.latestBackup(id)
	if berr != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return domain.Document{}, fmt.Errorf("open template: %w; backup attempt: %v", err, berr)
	}
	s.log.Warn("template recovered from backup", slog.String("id", id), slog.Any("err", err))
	return bdoc, nil
}

func readTemplate(path string) (domain.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	if err := ValidateJSON(b); err != nil {
		return domain.Document{}, err
	}
	var d domain.Document
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Document{}, fmt.Errorf("parse template: %w", err)
	}
	d.NormalizeBorders()
	return d, nil
}

// Delete removes a template file. Backups are kept.
func (s *Store) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(s.Path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// IDs lists the ids of all stored templates.
func (s *Store) IDs() ([]string, error) {
	ents, err := os.ReadDir(s.Dir())
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	var ids []string
	for _, e := range ents {
		if id, ok := IDFromPath(e.Name()); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// List returns summaries of all readable templates, newest first.
func (s *Store) List() ([]Summary, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		d, err := s.Load(id)
		if err != nil {
			s.log.Warn("skip unreadable template", slog.String("id", id), slog.Any("err", err))
			continue
		}
		out = append(out, Summarize(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Summarize builds the list view of a document.
func Summarize(d domain.Document) Summary {
	return Summary{ID: d.ID, Title: d.Title, UpdatedAt: d.UpdatedAt, Fields: len(d.Fields), Tables: len(d.Tables)}
}

// IDFromPath extracts the template id from a file name or path.
func IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, templateExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	id := strings.TrimSuffix(base, templateExt)
	if checkID(id) != nil {
		return "", false
	}
	return id, true
}

func (s *Store) latestBackup(id string) (domain.Document, error) {
	bdir := filepath.Join(s.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	prefix := id + templateExt + "."
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return domain.Document{}, errors.New("no backups found")
	}
	// timestamp in name yields lexicographic order
	sort.Strings(candidates)
	for i := len(candidates) - 1; i >= 0; i-- {
		if d, err := readTemplate(candidates[i]); err == nil {
			return d, nil
		}
	}
	return domain.Document{}, errors.New("no readable backup")
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// AutosaveCrash writes doc next to the backups without validation, so a
// document that tripped a panic is still preserved. It returns the file
// written. Load never reads these files.
func (s *Store) AutosaveCrash(doc domain.Document) (string, error) {
	name := doc.ID
	if checkID(name) != nil {
		name = "unsaved"
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash autosave: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(s.Root, BackupsDirName, fmt.Sprintf("%s.crash-%s%s", name, stamp, templateExt))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash autosave: %w", err)
	}
	return path, nil
}
