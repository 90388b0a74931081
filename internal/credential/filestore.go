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

package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// FileStore keeps the token record in a plain JSON file. It exists as a
// development fallback when no Key Vault is configured; every operation
// logs a warning to make accidental production use visible.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = ".oauth_tokens.json"
	}
	return &FileStore{path: path}
}

// Load reads the token record from disk. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file %s: %w", s.path, err)
	}

	slog.Warn("reading OAuth token from plain text file — not for production use", "path", s.path)

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	return &rec, nil
}

// Save writes the token record to disk with owner-only permissions.
func (s *FileStore) Save(ctx context.Context, rec *Record) error {
	slog.Warn("storing OAuth token in plain text file — not for production use", "path", s.path)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", s.path, err)
	}
	return nil
}

// Delete removes the token file. Deleting an absent file succeeds.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete token file %s: %w", s.path, err)
	}
	return nil
}
