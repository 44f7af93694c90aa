/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestSegmentTextAndTables(t *testing.T) {
	input := `# Quarterly report

Revenue grew
across all   regions.

| Region | Q1 | Q2 |
|--------|:--:|---:|
| North  | 10 | 12 |
| South  | 7  | 9  |

Name	Role
Ada	Engineer

closing line`

	c, err := Segment(strings.NewReader(input))
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	wantText := []string{"Quarterly report", "Revenue grew across all regions.", "closing line"}
	if len(c.TextBlocks) != len(wantText) {
		t.Fatalf("text blocks = %q", c.TextBlocks)
	}
	for i, w := range wantText {
		if c.TextBlocks[i] != w {
			t.Fatalf("block %d = %q, want %q", i, c.TextBlocks[i], w)
		}
	}
	if len(c.Tables) != 2 {
		t.Fatalf("tables = %d", len(c.Tables))
	}
	md := c.Tables[0]
	if len(md) != 3 || len(md[0]) != 3 || md[0][0] != "Region" || md[2][2] != "9" {
		t.Fatalf("markdown table = %q", md)
	}
	tsv := c.Tables[1]
	if len(tsv) != 2 || tsv[1][1] != "Engineer" {
		t.Fatalf("tab table = %q", tsv)
	}
}

func TestSegmentRaggedBlockIsText(t *testing.T) {
	c := SegmentString("a | b\nc | d | e")
	if len(c.Tables) != 0 || len(c.TextBlocks) != 1 {
		t.Fatalf("got %+v", c)
	}
	if c.TextBlocks[0] != "a | b c | d | e" {
		t.Fatalf("text = %q", c.TextBlocks[0])
	}
}

func TestSegmentSingleLineWithPipeIsText(t *testing.T) {
	c := SegmentString("either | or")
	if len(c.Tables) != 0 || len(c.TextBlocks) != 1 {
		t.Fatalf("got %+v", c)
	}
}

func TestSegmentEmpty(t *testing.T) {
	c := SegmentString("\n\n   \n")
	if !c.Empty() {
		t.Fatalf("expected empty content, got %+v", c)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestSegmentReaderError(t *testing.T) {
	if _, err := Segment(failingReader{}); err == nil {
		t.Fatalf("expected error")
	}
}
