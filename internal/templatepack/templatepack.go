/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package templatepack bundles stored templates into a single .lfpack zip
// and installs such a pack into another store.
//
// Layout of a pack:
//
//	manifest.yaml          name, creation time, app version, template list
//	templates/<id>.json    one document per template
//	previews/<id>.png      optional thumbnail
package templatepack

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"letterforge/internal/domain"
	"letterforge/internal/export"
	"letterforge/internal/geometry"
	applog "letterforge/internal/log"
	"letterforge/internal/storage"
	"letterforge/internal/version"
)

// Ext is the file extension of template packs.
const Ext = ".lfpack"

const (
	manifestName = "manifest.yaml"
	// largest template file accepted from a pack
	maxTemplateBytes = 32 << 20
)

// ErrBadPack is returned for archives that are not valid template packs.
var ErrBadPack = errors.New("invalid template pack")

// Entry lists one template in the manifest.
type Entry struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// Manifest describes a pack.
type Manifest struct {
	Name       string    `yaml:"name"`
	Created    time.Time `yaml:"created"`
	AppVersion string    `yaml:"app_version"`
	Templates  []Entry   `yaml:"templates"`
}

// Options control Export.
type Options struct {
	Name string
	// Previews adds a PNG thumbnail per template, rendered on Page.
	Previews bool
	Page     geometry.Page
}

// Export writes the templates with the given ids (all when empty) into a
// pack at dest.
func Export(s *storage.Store, ids []string, dest string, opt Options) (Manifest, error) {
	l := applog.WithOperation(applog.WithComponent("templatepack"), "export").With(slog.String("dest", dest))
	if strings.TrimSpace(dest) == "" {
		return Manifest{}, errors.New("destination is required")
	}
	if len(ids) == 0 {
		all, err := s.IDs()
		if err != nil {
			return Manifest{}, err
		}
		ids = all
	}
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		d, err := s.Load(id)
		if err != nil {
			return Manifest{}, err
		}
		docs = append(docs, d)
	}
	man := Manifest{Name: opt.Name, Created: time.Now().UTC().Truncate(time.Second), AppVersion: version.String()}
	if man.Name == "" {
		man.Name = strings.TrimSuffix(filepath.Base(dest), Ext)
	}
	for _, d := range docs {
		man.Templates = append(man.Templates, Entry{ID: d.ID, Title: d.Title})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Manifest{}, fmt.Errorf("ensure pack dir: %w", err)
	}
	tmp := dest + ".tmp"
	if err := writePack(tmp, man, docs, opt); err != nil {
		_ = os.Remove(tmp)
		l.Error("pack build failed", slog.Any("err", err))
		return Manifest{}, err
	}
	// On Windows, remove destination if present before rename
	_ = os.Remove(dest)
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return Manifest{}, fmt.Errorf("finalize pack: %w", err)
	}
	l.Info("template pack exported", slog.Int("templates", len(docs)))
	return man, nil
}

func writePack(path string, man Manifest, docs []domain.Document, opt Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pack: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(f)
	mb, err := yaml.Marshal(man)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := addFile(zw, manifestName, mb); err != nil {
		return err
	}
	for _, d := range docs {
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", d.ID, err)
		}
		if err := addFile(zw, "templates/"+d.ID+".json", data); err != nil {
			return err
		}
		if opt.Previews {
			png, err := export.Thumbnail(d, opt.Page, nil, 256)
			if err != nil {
				return fmt.Errorf("preview %s: %w", d.ID, err)
			}
			if err := addFile(zw, "previews/"+d.ID+".png", png); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Inspect reads the manifest of a pack.
func Inspect(pack string) (Manifest, error) {
	r, err := zip.OpenReader(pack)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrBadPack, err)
	}
	defer func() { _ = r.Close() }()
	return readManifest(&r.Reader)
}

func readManifest(r *zip.Reader) (Manifest, error) {
	for _, f := range r.File {
		if f.Name != manifestName {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return Manifest{}, err
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("%w: manifest: %v", ErrBadPack, err)
		}
		return m, nil
	}
	return Manifest{}, fmt.Errorf("%w: no %s", ErrBadPack, manifestName)
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxTemplateBytes {
		return nil, fmt.Errorf("%w: %s too large", ErrBadPack, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(io.LimitReader(rc, maxTemplateBytes))
}

// Install adds every template of a pack to s under a new id, so installing
// the same pack twice yields two copies. Each template is schema-checked
// before anything is written. It returns the new ids in manifest order.
func Install(s *storage.Store, pack string) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("templatepack"), "install").With(slog.String("pack", pack))
	r, err := zip.OpenReader(pack)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPack, err)
	}
	defer func() { _ = r.Close() }()
	man, err := readManifest(&r.Reader)
	if err != nil {
		return nil, err
	}
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[path.Clean(f.Name)] = f
	}
	docs := make([]domain.Document, 0, len(man.Templates))
	for _, e := range man.Templates {
		f, ok := files["templates/"+e.ID+".json"]
		if !ok {
			return nil, fmt.Errorf("%w: template %s missing", ErrBadPack, e.ID)
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		if err := storage.ValidateJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPack, e.ID, err)
		}
		var d domain.Document
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPack, e.ID, err)
		}
		docs = append(docs, d)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		d.ID = storage.NewID()
		if err := s.Save(&d); err != nil {
			return ids, err
		}
		ids = append(ids, d.ID)
	}
	l.Info("template pack installed", slog.String("name", man.Name), slog.Int("templates", len(ids)))
	return ids, nil
}
