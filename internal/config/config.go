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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the transcription workflow.
type Config struct {
	LogLevel string

	// Mailbox
	UserEmail       string
	ProcessedFolder string

	// Workflow
	MaxEmails     int
	DaysBack      int
	MaxFileSizeMB int

	// OAuth
	ClientID string
	TenantID string
	Scope    string

	// Speech
	SpeechEndpoint string
	SpeechRegion   string
	SpeechAPIKey   string
	SpeechLanguage string

	// Excel
	ExcelFileName string

	// Credentials
	KeyVaultURL       string
	SecretName        string
	TokenFile         string
	AllowFileFallback bool

	// Optional integrations
	DatabaseURL string
	RedisURL    string
	RedisQueue  string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	LogLevel string `yaml:"log_level"`
	Mailbox  struct {
		UserEmail       string `yaml:"user_email"`
		ProcessedFolder string `yaml:"processed_folder"`
	} `yaml:"mailbox"`
	Workflow struct {
		MaxEmails     int `yaml:"max_emails"`
		DaysBack      int `yaml:"days_back"`
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"workflow"`
	OAuth struct {
		ClientID string `yaml:"client_id"`
		TenantID string `yaml:"tenant_id"`
		Scope    string `yaml:"scope"`
	} `yaml:"oauth"`
	Speech struct {
		Endpoint string `yaml:"endpoint"`
		Region   string `yaml:"region"`
		APIKey   string `yaml:"api_key"`
		Language string `yaml:"language"`
	} `yaml:"speech"`
	Excel struct {
		FileName string `yaml:"file_name"`
	} `yaml:"excel"`
	Credentials struct {
		KeyVaultURL       string `yaml:"key_vault_url"`
		SecretName        string `yaml:"secret_name"`
		TokenFile         string `yaml:"token_file"`
		AllowFileFallback *bool  `yaml:"allow_file_fallback"`
	} `yaml:"credentials"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		LogLevel:        firstNonEmpty(raw.LogLevel, envOrDefault("LOG_LEVEL", "info")),
		UserEmail:       raw.Mailbox.UserEmail,
		ProcessedFolder: firstNonEmpty(raw.Mailbox.ProcessedFolder, "Processed"),
		MaxEmails:       intOrDefault(raw.Workflow.MaxEmails, 10),
		DaysBack:        intOrDefault(raw.Workflow.DaysBack, 7),
		MaxFileSizeMB:   intOrDefault(raw.Workflow.MaxFileSizeMB, 50),
		ClientID:        firstNonEmpty(raw.OAuth.ClientID, os.Getenv("OAUTH_CLIENT_ID")),
		TenantID:        firstNonEmpty(raw.OAuth.TenantID, envOrDefault("OAUTH_TENANT_ID", "common")),
		Scope:           firstNonEmpty(raw.OAuth.Scope, "https://graph.microsoft.com/.default offline_access"),
		SpeechEndpoint:  raw.Speech.Endpoint,
		SpeechRegion:    raw.Speech.Region,
		SpeechAPIKey:    firstNonEmpty(raw.Speech.APIKey, os.Getenv("SPEECH_API_KEY")),
		SpeechLanguage:  firstNonEmpty(raw.Speech.Language, "en-US"),
		ExcelFileName:   firstNonEmpty(raw.Excel.FileName, "scribe_transcriptions.xlsx"),
		KeyVaultURL:     firstNonEmpty(raw.Credentials.KeyVaultURL, os.Getenv("KEY_VAULT_URL")),
		SecretName:      firstNonEmpty(raw.Credentials.SecretName, "scribe-oauth-token"),
		TokenFile:       firstNonEmpty(raw.Credentials.TokenFile, ".oauth_tokens.json"),
		DatabaseURL:     firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:        firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		RedisQueue:      firstNonEmpty(raw.Redis.Queue, "scribe:transcripts"),
	}

	// File fallback defaults on; a vault-only deployment disables it.
	cfg.AllowFileFallback = true
	if raw.Credentials.AllowFileFallback != nil {
		cfg.AllowFileFallback = *raw.Credentials.AllowFileFallback
	}

	// A region shorthand expands to the regional speech endpoint.
	if cfg.SpeechEndpoint == "" && cfg.SpeechRegion != "" {
		cfg.SpeechEndpoint = fmt.Sprintf("https://%s.stt.speech.microsoft.com", cfg.SpeechRegion)
	}

	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, "oauth.client_id")
	}
	if cfg.SpeechEndpoint == "" {
		missing = append(missing, "speech.endpoint or speech.region")
	}
	if cfg.SpeechAPIKey == "" {
		missing = append(missing, "speech.api_key")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
