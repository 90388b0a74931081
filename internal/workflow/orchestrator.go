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

// Package workflow sequences one end-to-end run: discover voice emails,
// transcribe attachments, append rows to the workbook, and mark emails
// processed. Runs are strictly sequential; a run never returns an error,
// it reports anomalies through the result.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/scribe/internal/events"
	"github.com/bcem/scribe/internal/models"
)

// DefaultProcessedFolder is where handled emails are filed when no
// folder is configured.
const DefaultProcessedFolder = "Processed"

// Discoverer finds emails carrying qualifying voice attachments.
// Implemented by discovery.Finder.
type Discoverer interface {
	FindVoiceEmails(ctx context.Context, daysBack, maxEmails int) []models.VoiceEmail
}

// Transcriber converts audio bytes into a transcription result.
// Implemented by transcribe.Gateway.
type Transcriber interface {
	Transcribe(ctx context.Context, content []byte, filename string) models.TranscriptionResult
}

// RowWriter appends a transcription row to the workbook. Implemented by
// sheet.Writer.
type RowWriter interface {
	Write(ctx context.Context, tr models.TranscriptionResult, emailSubject, emailSender string, emailDate time.Time, attachmentFilename string) models.SheetWriteResult
}

// Mailbox is the mail mutation capability used to mark emails processed.
// Implemented by msgraph.MailClient.
type Mailbox interface {
	MarkRead(ctx context.Context, messageID string) error
	FindFolder(ctx context.Context, name string) (string, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	MoveMessage(ctx context.Context, messageID, folderID string) error
}

// RunRecorder persists a run summary. Implemented by runstore.Store.
type RunRecorder interface {
	Record(ctx context.Context, result models.WorkflowResult, startedAt time.Time) error
}

// TranscriptPublisher emits an event per completed transcription.
// Implemented by events.Publisher.
type TranscriptPublisher interface {
	Publish(ctx context.Context, t events.Transcript) error
}

// Orchestrator runs the voice transcription workflow.
type Orchestrator struct {
	discoverer      Discoverer
	transcriber     Transcriber
	writer          RowWriter
	mailbox         Mailbox
	recorder        RunRecorder
	publisher       TranscriptPublisher
	processedFolder string

	// processedFolderID caches the resolved folder across emails in a run.
	processedFolderID string
}

// Config holds the orchestrator's collaborators. Recorder and Publisher
// are optional; nil disables them.
type Config struct {
	Discoverer      Discoverer
	Transcriber     Transcriber
	Writer          RowWriter
	Mailbox         Mailbox
	Recorder        RunRecorder
	Publisher       TranscriptPublisher
	ProcessedFolder string
}

// New creates a workflow orchestrator.
func New(cfg Config) *Orchestrator {
	folder := cfg.ProcessedFolder
	if folder == "" {
		folder = DefaultProcessedFolder
	}
	return &Orchestrator{
		discoverer:      cfg.Discoverer,
		transcriber:     cfg.Transcriber,
		writer:          cfg.Writer,
		mailbox:         cfg.Mailbox,
		recorder:        cfg.Recorder,
		publisher:       cfg.Publisher,
		processedFolder: folder,
	}
}

// Run executes one workflow pass. It never returns an error: every
// anomaly is logged and reflected in the result. Success means at least
// one transcription completed.
func (o *Orchestrator) Run(ctx context.Context, maxEmails, daysBack int) models.WorkflowResult {
	start := time.Now()
	result := models.WorkflowResult{RunID: uuid.New().String()}

	slog.Info("workflow run starting",
		"run_id", result.RunID,
		"max_emails", maxEmails,
		"days_back", daysBack,
	)

	emails := o.discoverer.FindVoiceEmails(ctx, daysBack, maxEmails)
	if len(emails) == 0 {
		result.ProcessingTimeSeconds = time.Since(start).Seconds()
		slog.Info("no voice emails found", "run_id", result.RunID)
		o.finish(ctx, result, start)
		return result
	}

	for _, email := range emails {
		result.EmailsProcessed++
		if err := o.processEmail(ctx, email, &result); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("email %q from %s: %v", email.Subject, email.Sender, err))
		}
	}

	result.Success = result.TranscriptionsCompleted > 0
	result.ProcessingTimeSeconds = time.Since(start).Seconds()

	slog.Info("workflow run finished",
		"run_id", result.RunID,
		"success", result.Success,
		"emails_processed", result.EmailsProcessed,
		"transcriptions_completed", result.TranscriptionsCompleted,
		"rows_added", result.ExcelRowsAdded,
		"errors", len(result.Errors),
		"success_rate", result.SuccessRate(),
		"elapsed_seconds", result.ProcessingTimeSeconds,
	)

	o.finish(ctx, result, start)
	return result
}

// processEmail works through one email's attachments in order. The first
// attachment that both transcribes and lands in the sheet completes the
// email; remaining attachments are skipped. An email where every
// attachment fails returns an error for the run's error list.
func (o *Orchestrator) processEmail(ctx context.Context, email models.VoiceEmail, result *models.WorkflowResult) error {
	slog.Info("processing voice email",
		"subject", email.Subject,
		"sender", email.Sender,
		"attachments", len(email.VoiceAttachments),
	)

	for _, att := range email.VoiceAttachments {
		tr := o.transcriber.Transcribe(ctx, att.Content, att.Filename)
		if !tr.Success {
			slog.Warn("transcription failed",
				"filename", att.Filename,
				"err", tr.ErrorMessage,
			)
			continue
		}

		wr := o.writer.Write(ctx, tr, email.Subject, email.Sender, email.ReceivedDate, att.Filename)
		if !wr.Success {
			slog.Warn("sheet write failed",
				"filename", att.Filename,
				"err", wr.ErrorMessage,
			)
			continue
		}

		result.TranscriptionsCompleted++
		result.ExcelRowsAdded++

		o.publish(ctx, events.Transcript{
			MessageID:       email.MessageID,
			Filename:        att.Filename,
			Text:            tr.Text,
			Confidence:      tr.Confidence,
			DurationSeconds: tr.DurationSeconds,
			Row:             wr.RowNumber,
		})

		o.markProcessed(ctx, email.MessageID)
		return nil
	}

	return fmt.Errorf("no attachment transcribed successfully")
}

// markProcessed sets the read flag and files the email into the
// processed folder. Both sub-operations are attempted independently;
// partial success is logged, never retried, and never rolls back the
// sheet write.
func (o *Orchestrator) markProcessed(ctx context.Context, messageID string) {
	readOK := true
	if err := o.mailbox.MarkRead(ctx, messageID); err != nil {
		readOK = false
		slog.Warn("mark read failed", "message_id", messageID, "err", err)
	}

	moveOK := true
	folderID, err := o.resolveProcessedFolder(ctx)
	if err != nil {
		moveOK = false
		slog.Warn("processed folder unavailable", "folder", o.processedFolder, "err", err)
	} else if err := o.mailbox.MoveMessage(ctx, messageID, folderID); err != nil {
		moveOK = false
		slog.Warn("move to processed folder failed", "message_id", messageID, "err", err)
	}

	switch {
	case readOK && moveOK:
		slog.Info("email marked processed", "message_id", messageID)
	case readOK || moveOK:
		slog.Warn("email partially marked processed",
			"message_id", messageID,
			"read", readOK,
			"moved", moveOK,
		)
	}
}

// resolveProcessedFolder finds or creates the processed folder, caching
// the identifier for the rest of the run.
func (o *Orchestrator) resolveProcessedFolder(ctx context.Context) (string, error) {
	if o.processedFolderID != "" {
		return o.processedFolderID, nil
	}

	id, err := o.mailbox.FindFolder(ctx, o.processedFolder)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = o.mailbox.CreateFolder(ctx, o.processedFolder)
		if err != nil {
			return "", err
		}
	}

	o.processedFolderID = id
	return id, nil
}

// publish emits a transcript event when a publisher is configured.
// Publish failures are logged, never fatal.
func (o *Orchestrator) publish(ctx context.Context, t events.Transcript) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, t); err != nil {
		slog.Warn("transcript event publish failed",
			"message_id", t.MessageID,
			"err", err,
		)
	}
}

// finish records the run summary when a recorder is configured.
func (o *Orchestrator) finish(ctx context.Context, result models.WorkflowResult, startedAt time.Time) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, result, startedAt); err != nil {
		slog.Warn("run history record failed", "run_id", result.RunID, "err", err)
	}
}
