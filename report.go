/*
Copyright 2025 The Antfly Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package specaf

import (
	"time"

	"github.com/antflydb/specaf/store"
)

// IngestReport summarizes one completed ingest, including the
// recoverable warnings the parser collected along the way.
type IngestReport struct {
	RunID      string        `json:"run_id"`
	Name       string        `json:"name"`
	Title      string        `json:"title,omitempty"`
	Version    string        `json:"version,omitempty"`
	Digest     string        `json:"digest"`
	Endpoints  int           `json:"endpoints"`
	Schemas    int           `json:"schemas"`
	Categories int           `json:"categories"`
	Warnings   []string      `json:"warnings,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// StatusReport describes what a store directory currently holds.
type StatusReport struct {
	Name          string       `json:"name"`
	Title         string       `json:"title,omitempty"`
	Version       string       `json:"version,omitempty"`
	Digest        string       `json:"digest"`
	CreatedAt     time.Time    `json:"created_at"`
	Counts        store.Counts `json:"counts"`
	SchemaVersion int          `json:"schema_version"`
}
