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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
}

// TestLoad_FullConfig verifies parsing, env expansion, and defaults.
func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("TEST_SPEECH_KEY", "secret-key")
	writeConfig(t, `
log_level: debug
mailbox:
  user_email: box@example.com
  processed_folder: Handled
workflow:
  max_emails: 25
  days_back: 3
oauth:
  client_id: client-123
  tenant_id: tenant-abc
speech:
  region: westeurope
  api_key: ${TEST_SPEECH_KEY}
  language: nl-NL
excel:
  file_name: voicemails.xlsx
redis:
  url: redis://localhost:6379/0
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.UserEmail != "box@example.com" || cfg.ProcessedFolder != "Handled" {
		t.Errorf("mailbox = %q / %q", cfg.UserEmail, cfg.ProcessedFolder)
	}
	if cfg.MaxEmails != 25 || cfg.DaysBack != 3 {
		t.Errorf("workflow = %d / %d", cfg.MaxEmails, cfg.DaysBack)
	}
	if cfg.MaxFileSizeMB != 50 {
		t.Errorf("MaxFileSizeMB = %d, want default 50", cfg.MaxFileSizeMB)
	}
	if cfg.SpeechAPIKey != "secret-key" {
		t.Errorf("api key env expansion failed: %q", cfg.SpeechAPIKey)
	}
	if cfg.SpeechEndpoint != "https://westeurope.stt.speech.microsoft.com" {
		t.Errorf("SpeechEndpoint = %q", cfg.SpeechEndpoint)
	}
	if cfg.SpeechLanguage != "nl-NL" {
		t.Errorf("SpeechLanguage = %q", cfg.SpeechLanguage)
	}
	if cfg.ExcelFileName != "voicemails.xlsx" {
		t.Errorf("ExcelFileName = %q", cfg.ExcelFileName)
	}
	if cfg.RedisQueue != "scribe:transcripts" {
		t.Errorf("RedisQueue = %q, want default", cfg.RedisQueue)
	}
	if !cfg.AllowFileFallback {
		t.Error("AllowFileFallback default should be true")
	}
}

// TestLoad_MissingRequired verifies the collected missing-field error.
func TestLoad_MissingRequired(t *testing.T) {
	writeConfig(t, `
mailbox:
  user_email: box@example.com
`)
	t.Setenv("OAUTH_CLIENT_ID", "")
	t.Setenv("SPEECH_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded without required fields")
	}
	msg := err.Error()
	for _, field := range []string{"oauth.client_id", "speech.endpoint", "speech.api_key"} {
		if !strings.Contains(msg, field) {
			t.Errorf("error %q does not name %s", msg, field)
		}
	}
}

// TestLoad_ExplicitFallbackDisabled verifies the tri-state fallback flag.
func TestLoad_ExplicitFallbackDisabled(t *testing.T) {
	writeConfig(t, `
oauth:
  client_id: c
speech:
  region: eastus
  api_key: k
credentials:
  key_vault_url: https://vault.example.net
  allow_file_fallback: false
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AllowFileFallback {
		t.Error("AllowFileFallback = true, want explicit false honoured")
	}
	if cfg.KeyVaultURL != "https://vault.example.net" {
		t.Errorf("KeyVaultURL = %q", cfg.KeyVaultURL)
	}
}
