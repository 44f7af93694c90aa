/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func sampleDoc() Document {
	return Document{
		Title: "Invoice",
		Fields: []Field{
			{ID: 1, Kind: KindText, X: 40, Y: 76, W: 200, H: 60, Value: "Hello", FontSize: 14, Align: AlignLeft},
			{ID: 2, Kind: KindImage, X: 300, Y: 76, W: 120, H: 80, DataURL: "data:image/png;base64,AAAA"},
		},
		Tables: []Table{
			{ID: 3, X: 40, Y: 200, W: 400, H: 96, Rows: [][]string{{"A", "B"}, {"1", "2"}}, HeaderRow: true, BorderStyle: BorderFull},
		},
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	d := sampleDoc()
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, d) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, d)
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := sampleDoc()
	c := d.Clone()
	c.Fields[0].Value = "changed"
	c.Tables[0].Rows[0][0] = "Z"
	if d.Fields[0].Value != "Hello" {
		t.Fatalf("field shared with clone")
	}
	if d.Tables[0].Rows[0][0] != "A" {
		t.Fatalf("table rows shared with clone")
	}
}

func TestNormalizeRows(t *testing.T) {
	got := NormalizeRows([][]string{{"a"}, {"b", "c", "d"}, {}})
	want := [][]string{{"a", "", ""}, {"b", "c", "d"}, {"", "", ""}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeRows = %v, want %v", got, want)
	}
	if NormalizeRows(nil) != nil || NormalizeRows([][]string{{}, {}}) != nil {
		t.Fatalf("empty grids must normalize to nil")
	}
}

func TestValidate(t *testing.T) {
	if err := sampleDoc().Validate(); err != nil {
		t.Fatalf("valid doc rejected: %v", err)
	}
	d := sampleDoc()
	d.Tables[0].Rows = [][]string{{"a", "b"}, {"c"}}
	if err := d.Validate(); !errors.Is(err, ErrRaggedTable) {
		t.Fatalf("expected ErrRaggedTable, got %v", err)
	}
	d = sampleDoc()
	d.Tables[0].ID = 1
	if err := d.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	d = sampleDoc()
	d.Fields[1].Kind = "video"
	if err := d.Validate(); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestElementsAndMaxID(t *testing.T) {
	d := sampleDoc()
	els := d.Elements()
	if len(els) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(els))
	}
	if els[2].Ref != TableRef(3) || els[2].Table == nil {
		t.Fatalf("tables must follow fields: %+v", els[2])
	}
	if d.MaxID() != 3 {
		t.Fatalf("MaxID = %d", d.MaxID())
	}
	if (ElementRef{}).String() != "none" || FieldRef(7).String() != "field#7" {
		t.Fatalf("unexpected ref strings")
	}
}
