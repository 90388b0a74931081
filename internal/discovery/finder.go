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

// Package discovery finds mailbox messages carrying qualifying voice
// attachments. It over-fetches candidates, filters by date and attachment
// rules, and downloads content in a second phase so large bodies are
// never pulled for attachments that fail the cheap checks.
package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/bcem/scribe/internal/filter"
	"github.com/bcem/scribe/internal/models"
	"github.com/bcem/scribe/internal/sanitize"
)

// overFetchFactor compensates for date-filtering and attachment-filtering
// attrition when requesting candidates from the mail provider.
const overFetchFactor = 3

// MailClient is the mail capability discovery consumes. Implemented by
// msgraph.MailClient.
type MailClient interface {
	// ListMessagesWithAttachments returns up to limit messages flagged as
	// having attachments, newest first.
	ListMessagesWithAttachments(ctx context.Context, limit int) ([]models.MailMessage, error)
	ListAttachments(ctx context.Context, messageID string) ([]models.AttachmentInfo, error)
	DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Finder locates voice emails in the configured mailbox.
type Finder struct {
	mail   MailClient
	filter *filter.Filter
	now    func() time.Time
}

// NewFinder creates a voice email finder.
func NewFinder(mail MailClient, f *filter.Filter) *Finder {
	return &Finder{mail: mail, filter: f, now: time.Now}
}

// FindVoiceEmails returns emails from the recency window that carry at
// least one qualifying voice attachment, newest first, capped at
// maxEmails. It never fails the caller: internal errors degrade to empty
// results with the cause logged.
func (f *Finder) FindVoiceEmails(ctx context.Context, daysBack, maxEmails int) []models.VoiceEmail {
	if maxEmails <= 0 || daysBack <= 0 {
		return nil
	}

	messages, err := f.mail.ListMessagesWithAttachments(ctx, maxEmails*overFetchFactor)
	if err != nil {
		slog.Error("listing candidate messages failed", "err", err)
		return nil
	}

	cutoff := f.now().UTC().AddDate(0, 0, -daysBack)
	candidates := make([]models.MailMessage, 0, maxEmails)
	for _, msg := range messages {
		if msg.ReceivedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, msg)
		if len(candidates) >= maxEmails {
			break
		}
	}

	slog.Info("candidate messages after date filter",
		"fetched", len(messages),
		"candidates", len(candidates),
		"days_back", daysBack,
	)

	var voiceEmails []models.VoiceEmail
	for _, msg := range candidates {
		attachments := f.collectVoiceAttachments(ctx, msg.ID)
		if len(attachments) == 0 {
			// Messages with no surviving attachments never become a
			// VoiceEmail.
			continue
		}

		voiceEmails = append(voiceEmails, models.VoiceEmail{
			MessageID:        msg.ID,
			Subject:          sanitize.Subject(msg.Subject),
			Sender:           sanitize.EmailAddress(msg.Sender),
			ReceivedDate:     msg.ReceivedAt,
			VoiceAttachments: attachments,
		})
	}

	slog.Info("voice email discovery complete",
		"candidates", len(candidates),
		"voice_emails", len(voiceEmails),
	)

	return voiceEmails
}

// collectVoiceAttachments runs the two-phase fetch for one message:
// metadata filtering first, then download and re-validation of the actual
// bytes.
func (f *Finder) collectVoiceAttachments(ctx context.Context, messageID string) []models.VoiceAttachment {
	metas, err := f.mail.ListAttachments(ctx, messageID)
	if err != nil {
		slog.Warn("listing attachments failed", "message_id", messageID, "err", err)
		return nil
	}

	var attachments []models.VoiceAttachment
	for _, meta := range metas {
		if !f.filter.IsProcessable(meta.Name, meta.Size, nil) {
			continue
		}

		content, err := f.mail.DownloadAttachment(ctx, messageID, meta.ID)
		if err != nil {
			slog.Warn("attachment download failed",
				"message_id", messageID,
				"attachment", meta.Name,
				"err", err,
			)
			continue
		}

		// Re-validate against the downloaded bytes; the metadata-phase
		// size is advisory and the sniff needs real content.
		if !f.filter.IsProcessable(meta.Name, int64(len(content)), content) {
			slog.Warn("attachment rejected after download",
				"message_id", messageID,
				"attachment", meta.Name,
				"size", len(content),
			)
			continue
		}

		name, _ := sanitize.AudioFilename(meta.Name)
		attachments = append(attachments, models.VoiceAttachment{
			Filename:    name,
			Content:     content,
			Size:        int64(len(content)),
			ContentType: meta.ContentType,
		})
	}

	return attachments
}
