/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ingest turns extracted plain text into the text blocks and tables
// the editor lays out on a page.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Content is the result of segmenting a text.
type Content struct {
	TextBlocks []string
	Tables     [][][]string
}

// Empty reports whether nothing was found.
func (c Content) Empty() bool { return len(c.TextBlocks) == 0 && len(c.Tables) == 0 }

var (
	reHeading   = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	reSeparator = regexp.MustCompile(`^\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?$`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// maxLine bounds a single input line.
const maxLine = 1 << 20

// Segment splits r into blocks separated by blank lines.
//
// A block becomes a table when it has at least two lines and every line
// splits into the same number (two or more) of cells on tabs or pipes;
// markdown separator rows such as "|---|:--:|" are dropped. Any other block
// becomes a single text block with its lines joined by spaces. Markdown
// headings always form their own text block.
func Segment(r io.Reader) (Content, error) {
	var c Content
	var block []string

	flush := func() {
		if len(block) == 0 {
			return
		}
		if rows, ok := tableRows(block); ok {
			c.Tables = append(c.Tables, rows)
		} else if text := joinText(block); text != "" {
			c.TextBlocks = append(c.TextBlocks, text)
		}
		block = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trim := strings.TrimSpace(line)
		if trim == "" {
			flush()
			continue
		}
		if m := reHeading.FindStringSubmatch(trim); m != nil {
			flush()
			block = []string{m[1]}
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return Content{}, fmt.Errorf("segment: %w", err)
	}
	flush()
	return c, nil
}

// SegmentString is Segment over a string.
func SegmentString(s string) Content {
	c, _ := Segment(strings.NewReader(s))
	return c
}

func tableRows(lines []string) ([][]string, bool) {
	if len(lines) < 2 {
		return nil, false
	}
	var rows [][]string
	cols := 0
	for _, l := range lines {
		trim := strings.TrimSpace(l)
		if reSeparator.MatchString(trim) {
			continue
		}
		cells := splitCells(trim)
		if len(cells) < 2 {
			return nil, false
		}
		if cols == 0 {
			cols = len(cells)
		} else if len(cells) != cols {
			return nil, false
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

func splitCells(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	case strings.Contains(line, "|"):
		line = strings.TrimPrefix(strings.TrimSuffix(line, "|"), "|")
		parts = strings.Split(line, "|")
	default:
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func joinText(lines []string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.Join(lines, " "), " "))
}
