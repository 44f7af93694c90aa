/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop canvas. The Fyne frontend is only compiled with
// -tags fyne; other builds get a stub Run that explains how to enable it.
package ui

import (
	"letterforge/internal/geometry"
)

// Options configure Run.
type Options struct {
	// StoreRoot is the template store the window saves into.
	StoreRoot string
	// TemplateID opens an existing template; empty starts a new one.
	TemplateID   string
	Page         geometry.Page
	HistoryLimit int
	// ExportDir receives exports started from the toolbar.
	ExportDir string
}
