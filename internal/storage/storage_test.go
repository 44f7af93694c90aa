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

	"letterforge/internal/domain"
)

func sampleTemplate(title string) domain.Document {
	return domain.Document{
		Title: title,
		Fields: []domain.Field{
			{ID: 1, Kind: domain.KindText, X: 40, Y: 40, W: 240, H: 40, Value: "Dear customer, thank you for your order", FontSize: 14, Align: domain.AlignLeft},
			{ID: 2, Kind: domain.KindText, X: 40, Y: 100, W: 240, H: 40, Value: "Invoice number", FontSize: 12},
		},
		Tables: []domain.Table{
			{ID: 3, X: 40, Y: 200, W: 400, H: 96, Rows: [][]string{{"Item", "Price"}, {"Stapler", "12"}}, HeaderRow: true, BorderStyle: domain.BorderLight},
		},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func openIndex(t *testing.T, s *Store) *Index {
	t.Helper()
	ix, err := OpenIndex(s.Root)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
