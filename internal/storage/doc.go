/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists letter templates.
// Each template is a JSON file under <root>/templates, written transactionally with timestamped backups
// under <root>/backups and validated against an embedded JSON schema on load.
// A derived SQLite index at <root>/.lf/index.sqlite catalogs the templates for search and caches preview
// thumbnails and history snapshots. The index is rebuildable from the template files at any time.
package storage
