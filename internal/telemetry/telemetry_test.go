/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  []Payload
	crashes [][]byte
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		var p Payload
		_ = json.NewDecoder(req.Body).Decode(&p)
		r.mu.Lock()
		r.events = append(r.events, p)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, b)
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSendsExportAndImportEvents(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.Exported("pdf", "print", 2048, 120*time.Millisecond)
	c.Imported(3, 1, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c.Flush(ctx)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Name != "export" || ev.Props["format"] != "pdf" || ev.Props["bytes"] != float64(2048) {
		t.Fatalf("export event = %+v", ev)
	}
	if ev.TS == "" || ev.Version == "" {
		t.Fatalf("missing envelope fields: %+v", ev)
	}
	if rec.events[1].Name != "import" || rec.events[1].Props["text_blocks"] != float64(3) {
		t.Fatalf("import event = %+v", rec.events[1])
	}
}

func TestUploadCrash(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash"})
	defer c.Close()
	c.UploadCrash([]byte("STACKTRACE"))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.crashes) != 1 || string(rec.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crashes = %q", rec.crashes)
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))

	c2 := New(Config{OptIn: true, EventsURL: srv.URL})
	defer c2.Close()
	c2.Event("", nil)
	c2.Flush(context.Background())
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
	var nilClient *Client
	nilClient.Event("x", nil)
	nilClient.Flush(context.Background())
}

func TestSendFailureDoesNotBlock(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)
	c.UploadCrash([]byte("oops"))
}

func TestFromEnvAndDefault(t *testing.T) {
	t.Setenv("LF_TELEMETRY_OPT_IN", "true")
	t.Setenv("LF_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("LF_CRASH_UPLOAD_URL", "")
	t.Setenv("LF_TELEMETRY_TIMEOUT_MS", "100")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv = %+v", cfg)
	}
	SetDefault(cfg)
	t.Cleanup(func() { SetDefault(Config{}) })
	if !Default().Enabled() {
		t.Fatalf("default client should be enabled")
	}
}
