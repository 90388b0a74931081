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

// Scribe — Voicemail Transcription Workflow
//
// One-shot runner: polls the configured mailbox for voice attachments,
// transcribes them through Azure Speech, appends rows to the Excel
// workbook, and marks the emails processed. Exits 0 when at least one
// transcription completed, 1 otherwise.
//
// Usage:
//
//	go run ./cmd/scribe/ [--max-emails 10] [--days-back 7]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/bcem/scribe/internal/config"
	"github.com/bcem/scribe/internal/credential"
	"github.com/bcem/scribe/internal/discovery"
	"github.com/bcem/scribe/internal/events"
	"github.com/bcem/scribe/internal/filter"
	"github.com/bcem/scribe/internal/msgraph"
	"github.com/bcem/scribe/internal/runstore"
	"github.com/bcem/scribe/internal/sheet"
	"github.com/bcem/scribe/internal/speech"
	"github.com/bcem/scribe/internal/token"
	"github.com/bcem/scribe/internal/transcribe"
	"github.com/bcem/scribe/internal/workflow"
)

func main() {
	// --- CLI Flags ---
	maxEmailsFlag := flag.Int("max-emails", 0, "Maximum emails to process (overrides config)")
	daysBackFlag := flag.Int("days-back", 0, "Recency window in days (overrides config)")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		// Logging is not configured yet; bootstrap a default handler.
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	maxEmails := cfg.MaxEmails
	if *maxEmailsFlag > 0 {
		maxEmails = *maxEmailsFlag
	}
	daysBack := cfg.DaysBack
	if *daysBackFlag > 0 {
		daysBack = *daysBackFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Credential store and token manager ---
	store, err := credential.Select(credential.SelectConfig{
		KeyVaultURL:       cfg.KeyVaultURL,
		SecretName:        cfg.SecretName,
		FallbackFile:      cfg.TokenFile,
		AllowFileFallback: cfg.AllowFileFallback,
	})
	if err != nil {
		slog.Error("no credential store available", "error", err)
		os.Exit(1)
	}

	manager := token.NewManager(token.ManagerConfig{
		Store:     store,
		ClientID:  cfg.ClientID,
		TenantID:  cfg.TenantID,
		Scope:     cfg.Scope,
		UserEmail: cfg.UserEmail,
	})

	if _, err := manager.AccessToken(ctx); err != nil {
		slog.Error("no usable credential", "error", err)
		os.Exit(1)
	}

	// Graph calls authenticate through the manager as a token source.
	httpClient := oauth2.NewClient(ctx, manager)

	// --- Provider clients ---
	mailClient := msgraph.NewMailClient(httpClient, "")
	workbookClient := msgraph.NewWorkbookClient(httpClient, "")
	speechClient := speech.NewClient(speech.ClientConfig{
		Endpoint: cfg.SpeechEndpoint,
		APIKey:   cfg.SpeechAPIKey,
		Language: cfg.SpeechLanguage,
	})

	// --- Workflow components ---
	finder := discovery.NewFinder(mailClient, filter.New(cfg.MaxFileSizeMB))
	gateway := transcribe.NewGateway(speechClient)
	writer := sheet.NewWriter(workbookClient, cfg.ExcelFileName)

	// --- Optional integrations ---
	var recorder workflow.RunRecorder
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("invalid database URL", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rs, err := runstore.NewStore(ctx, pool)
		if err != nil {
			slog.Error("failed to initialise run store", "error", err)
			os.Exit(1)
		}
		recorder = rs
		slog.Info("run history enabled")
	}

	var publisher workflow.TranscriptPublisher
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		pub := events.NewPublisher(rdb, cfg.RedisQueue)
		if err := pub.Ping(ctx); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		publisher = pub
		slog.Info("transcript events enabled", "queue", cfg.RedisQueue)
	}

	// --- Run Workflow ---
	orchestrator := workflow.New(workflow.Config{
		Discoverer:      finder,
		Transcriber:     gateway,
		Writer:          writer,
		Mailbox:         mailClient,
		Recorder:        recorder,
		Publisher:       publisher,
		ProcessedFolder: cfg.ProcessedFolder,
	})

	result := orchestrator.Run(ctx, maxEmails, daysBack)

	// --- Summary ---
	slog.Info("workflow summary",
		"run_id", result.RunID,
		"success", result.Success,
		"emails_processed", result.EmailsProcessed,
		"transcriptions_completed", result.TranscriptionsCompleted,
		"rows_added", result.ExcelRowsAdded,
		"success_rate", result.SuccessRate(),
		"elapsed_seconds", result.ProcessingTimeSeconds,
	)
	for _, e := range result.Errors {
		slog.Warn("workflow error", "detail", e)
	}

	if !result.Success {
		os.Exit(1)
	}
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
