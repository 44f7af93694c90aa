/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up slog for letterforge: a compact text handler (or JSON)
// on stderr plus an optional rotating JSON file. Records logged with a
// context from WithDocument carry the template id.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"letterforge/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// AppName is attached to every record as the "app" attribute.
const AppName = "letterforge"

// Options controls logger initialization. FromEnv reads them from
// LF_LOG_LEVEL (debug|info|warn|error), LF_LOG_FORMAT (console|json),
// LF_LOG_SOURCE and LF_LOG_FILE.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string // rotated JSON log, optional
	// Writer replaces stderr as the console destination when set.
	Writer io.Writer
}

// File rotation limits.
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 5
	fileMaxAgeDays = 30
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	level   = new(slog.LevelVar)
	file    *lj.Logger
)

// L returns the application logger, initializing it from the environment
// on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init (re)configures the application logger and slog.Default. A file
// opened by an earlier Init is closed.
func Init(opts Options) {
	level.Set(ParseLevel(opts.Level))
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, hopts)
	} else {
		console = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource, ReplaceAttr: compact})
	}
	hs := []slog.Handler{console}

	var fl *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		fl = &lj.Logger{Filename: path, MaxSize: fileMaxSizeMB, MaxBackups: fileMaxBackups, MaxAge: fileMaxAgeDays, Compress: true}
		hs = append(hs, slog.NewJSONHandler(fl, hopts))
	}

	var h slog.Handler = docHandler{tee(hs)}
	if len(hs) == 1 {
		h = docHandler{console}
	}
	l := slog.New(h).With(slog.String("app", AppName), slog.String("ver", version.Version))

	mu.Lock()
	old := file
	current, file = l, fl
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	slog.SetDefault(l)
}

// SetLevel changes the level of the running logger.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// FromEnv builds Options from LF_LOG_* variables.
func FromEnv() Options {
	format := os.Getenv("LF_LOG_FORMAT")
	if format == "" {
		format = "console"
	}
	return Options{
		Level:     os.Getenv("LF_LOG_LEVEL"),
		Format:    format,
		AddSource: strings.EqualFold(os.Getenv("LF_LOG_SOURCE"), "true"),
		File:      os.Getenv("LF_LOG_FILE"),
	}
}

// ParseLevel maps a level name to a slog level; unknown names give info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type docKey struct{}

// WithDocument returns a context whose log records carry the given template id.
func WithDocument(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, docKey{}, id)
}

// DocumentFrom extracts the id stored by WithDocument.
func DocumentFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(docKey{}).(string)
	return id, ok && id != ""
}

// compact shortens the console output: clock time only, three letter levels.
func compact(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(interface{ Format(string) string }); ok {
			return slog.String(slog.TimeKey, t.Format("15:04:05.000"))
		}
	case slog.LevelKey:
		if l, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, levelTag(l))
		}
	}
	return a
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	}
	return "ERR"
}

// docHandler adds the template id from the context.
type docHandler struct{ slog.Handler }

func (h docHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := DocumentFrom(ctx); ok {
		r.AddAttrs(slog.String("doc", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h docHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return docHandler{h.Handler.WithAttrs(as)}
}

func (h docHandler) WithGroup(name string) slog.Handler { return docHandler{h.Handler.WithGroup(name)} }

// tee sends every record to all handlers that accept its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
