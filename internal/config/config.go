/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads and saves the user configuration. Values come from a
// YAML file in the user config directory; LF_* environment variables
// override them at runtime and are never written back.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"letterforge/internal/geometry"
	"letterforge/internal/history"
)

// CurrentVersion is written to config_version.
const CurrentVersion = 1

type PageConfig struct {
	Width         float64 `yaml:"width"`
	Height        float64 `yaml:"height"`
	SafeMargin    float64 `yaml:"safe_margin"`
	Grid          float64 `yaml:"grid"`
	SnapThreshold float64 `yaml:"snap_threshold"`
}

type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

type ExportConfig struct {
	Preset    string  `yaml:"preset"` // print | office | web
	OutDir    string  `yaml:"out_dir"`
	Author    string  `yaml:"author"`
	CoreFonts bool    `yaml:"core_fonts"`
	PNGScale  float64 `yaml:"png_scale"`
}

type StorageConfig struct {
	Root             string `yaml:"root"`
	PreviewsMaxBytes int64  `yaml:"previews_max_bytes"`
	KeepSnapshots    int    `yaml:"keep_snapshots"`
	Maintenance      string `yaml:"maintenance"` // cron spec
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	User      string `yaml:"user"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// the password is not stored on disk; it lives in the OS keyring
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
}

// AppConfig is the user-editable configuration.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Page          PageConfig      `yaml:"page"`
	History       HistoryConfig   `yaml:"history"`
	Export        ExportConfig    `yaml:"export"`
	Storage       StorageConfig   `yaml:"storage"`
	Backend       BackendConfig   `yaml:"backend"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	p := geometry.DefaultPage()
	return AppConfig{
		ConfigVersion: CurrentVersion,
		Page:          PageConfig{Width: p.Width, Height: p.Height, SafeMargin: p.SafeMargin, Grid: p.Grid, SnapThreshold: p.SnapThreshold},
		History:       HistoryConfig{Limit: history.DefaultLimit},
		Export:        ExportConfig{Preset: "print", OutDir: "export", PNGScale: 1},
		Storage:       StorageConfig{Root: defaultStorageRoot(), PreviewsMaxBytes: 64 * 1024 * 1024, KeepSnapshots: history.DefaultLimit, Maintenance: "@every 10m"},
		Backend:       BackendConfig{TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir      = "LF_CONFIG_DIR"
	EnvStorageRoot    = "LF_STORAGE_ROOT"
	EnvHistoryLimit   = "LF_HISTORY_LIMIT"
	EnvExportPreset   = "LF_EXPORT_PRESET"
	EnvExportOutDir   = "LF_EXPORT_DIR"
	EnvBackendDSN     = "LF_BACKEND_DSN"
	EnvBackendTimeout = "LF_BACKEND_TIMEOUT_MS"
	EnvTelemetryOptIn = "LF_TELEMETRY_OPT_IN"
	EnvLogLevel       = "LF_LOG_LEVEL"
	EnvLogFormat      = "LF_LOG_FORMAT"
	EnvLogSource      = "LF_LOG_SOURCE"
	EnvLogFile        = "LF_LOG_FILE"
)

// Service/keys for the OS keyring.
const (
	keyringService  = "letterforge"
	keyringPassword = "backend_password"
)

// SecretStore abstracts the keyring so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secrets SecretStore = osKeyring{}

// Dir returns the per-user config directory. LF_CONFIG_DIR replaces it.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "letterforge"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultStorageRoot() string {
	if dir, err := Dir(); err == nil {
		return filepath.Join(dir, "store")
	}
	return "letterforge-store"
}

// Load reads the config file (if present), applies defaults and merges
// environment overrides. The backend password is read from the keyring and
// returned separately; a missing entry yields "".
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	pw, _ := secrets.Get(keyringService, keyringPassword)
	return cfg, pw, nil
}

// Save writes the config YAML and stores a non-empty password in the keyring.
func Save(cfg AppConfig, password string) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = CurrentVersion
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := secrets.Set(keyringService, keyringPassword, password); err != nil {
			return fmt.Errorf("store backend password: %w", err)
		}
	}
	return nil
}

// ForgetPassword removes the backend password from the keyring.
func ForgetPassword() error {
	err := secrets.Delete(keyringService, keyringPassword)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// page: zero means "keep default"
	if src.Page.Width > 0 {
		dst.Page.Width = src.Page.Width
	}
	if src.Page.Height > 0 {
		dst.Page.Height = src.Page.Height
	}
	if src.Page.SafeMargin > 0 {
		dst.Page.SafeMargin = src.Page.SafeMargin
	}
	if src.Page.Grid > 0 {
		dst.Page.Grid = src.Page.Grid
	}
	if src.Page.SnapThreshold > 0 {
		dst.Page.SnapThreshold = src.Page.SnapThreshold
	}
	if src.History.Limit > 0 {
		dst.History.Limit = src.History.Limit
	}
	if v := strings.ToLower(strings.TrimSpace(src.Export.Preset)); v != "" {
		dst.Export.Preset = v
	}
	if v := strings.TrimSpace(src.Export.OutDir); v != "" {
		dst.Export.OutDir = v
	}
	if v := strings.TrimSpace(src.Export.Author); v != "" {
		dst.Export.Author = v
	}
	dst.Export.CoreFonts = src.Export.CoreFonts
	if src.Export.PNGScale > 0 {
		dst.Export.PNGScale = src.Export.PNGScale
	}
	if v := strings.TrimSpace(src.Storage.Root); v != "" {
		dst.Storage.Root = v
	}
	if src.Storage.PreviewsMaxBytes > 0 {
		dst.Storage.PreviewsMaxBytes = src.Storage.PreviewsMaxBytes
	}
	if src.Storage.KeepSnapshots > 0 {
		dst.Storage.KeepSnapshots = src.Storage.KeepSnapshots
	}
	if v := strings.TrimSpace(src.Storage.Maintenance); v != "" {
		dst.Storage.Maintenance = v
	}
	if v := strings.TrimSpace(src.Backend.DSN); v != "" {
		dst.Backend.DSN = v
	}
	if v := strings.TrimSpace(src.Backend.User); v != "" {
		dst.Backend.User = v
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
	// booleans: copied from the file so the user's choice persists
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	if v := strings.TrimSpace(src.Telemetry.EventsURL); v != "" {
		dst.Telemetry.EventsURL = v
	}
	if v := strings.TrimSpace(src.Telemetry.CrashURL); v != "" {
		dst.Telemetry.CrashURL = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvStorageRoot)); v != "" {
		cfg.Storage.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryLimit)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.Limit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportPreset)); v != "" {
		cfg.Export.Preset = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportOutDir)); v != "" {
		cfg.Export.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.Telemetry.OptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"storage.root":       EnvStorageRoot,
	"history.limit":      EnvHistoryLimit,
	"export.preset":      EnvExportPreset,
	"export.out_dir":     EnvExportOutDir,
	"backend.dsn":        EnvBackendDSN,
	"backend.timeout_ms": EnvBackendTimeout,
	"telemetry.opt_in":   EnvTelemetryOptIn,
	"logging.level":      EnvLogLevel,
	"logging.format":     EnvLogFormat,
	"logging.source":     EnvLogSource,
	"logging.file":       EnvLogFile,
}

// EnvOverrideFor returns the env var name when the field is overridden by
// the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// GeometryPage converts the page section to the editor's page definition.
func (p PageConfig) GeometryPage() geometry.Page {
	return geometry.Page{
		Width:         p.Width,
		Height:        p.Height,
		SafeMargin:    p.SafeMargin,
		Grid:          p.Grid,
		SnapThreshold: p.SnapThreshold,
	}.Normalized()
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
