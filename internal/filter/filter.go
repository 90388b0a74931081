// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filter decides which mail attachments qualify for transcription:
// filename safety, the single allowed audio extension, size bounds, and a
// magic-number sniff once content is available.
package filter

import (
	"log/slog"

	"github.com/bcem/scribe/internal/sanitize"
)

// DefaultMaxSizeMB is the attachment size ceiling when none is configured.
const DefaultMaxSizeMB = 50

// Filter applies the attachment acceptance rules.
type Filter struct {
	maxBytes int64
}

// New creates a filter with the given size ceiling in megabytes.
// Non-positive values fall back to the default.
func New(maxSizeMB int) *Filter {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &Filter{maxBytes: int64(maxSizeMB) * 1024 * 1024}
}

// MaxBytes returns the configured size ceiling.
func (f *Filter) MaxBytes() int64 { return f.maxBytes }

// IsProcessable reports whether an attachment qualifies for transcription.
// data may be nil during the metadata phase; the sniff only runs once
// content is available. Rejection is a policy decision, never an error.
func (f *Filter) IsProcessable(name string, size int64, data []byte) bool {
	// Filename safety runs first, regardless of workflow semantics.
	cleaned, ok := sanitize.AudioFilename(name)
	if !ok {
		slog.Debug("attachment skipped: filename rejected", "name", name)
		return false
	}

	if size <= 0 {
		slog.Debug("attachment skipped: empty", "name", cleaned)
		return false
	}
	if size > f.maxBytes {
		slog.Warn("attachment skipped: too large",
			"name", cleaned,
			"size", size,
			"max_bytes", f.maxBytes,
		)
		return false
	}

	if data != nil {
		if format, known := sanitize.AudioFormat(data); !known {
			// Permissive by policy: an unrecognised signature under the
			// allowed extension is accepted so unusual encodings are not
			// dropped, but the acceptance is logged as low-confidence.
			slog.Warn("attachment accepted with unrecognised audio signature", "name", cleaned)
		} else {
			slog.Debug("attachment format verified", "name", cleaned, "format", format)
		}
	}

	return true
}
