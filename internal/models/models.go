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

// Package models defines the data structures shared across the voice
// transcription workflow.
package models

import (
	"strings"
	"time"
)

// MailMessage is a provider-level message summary from the mail API.
// Fields are raw; sanitisation happens when a VoiceEmail is built.
type MailMessage struct {
	ID         string
	Subject    string
	Sender     string
	ReceivedAt time.Time
}

// AttachmentInfo is provider-level attachment metadata, fetched before
// any content download.
type AttachmentInfo struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
}

// VoiceAttachment is a downloaded, validated audio attachment ready for
// transcription. Content has passed the extension, size, and format
// checks before this struct is ever constructed.
type VoiceAttachment struct {
	Filename    string
	Content     []byte
	Size        int64
	ContentType string
}

// VoiceEmail is an email carrying at least one voice attachment.
// Discovery never constructs one with an empty attachment list.
type VoiceEmail struct {
	MessageID        string
	Subject          string
	Sender           string
	ReceivedDate     time.Time
	VoiceAttachments []VoiceAttachment
}

// TranscriptionResult is the outcome of a single transcription attempt.
type TranscriptionResult struct {
	Success               bool
	Text                  string
	Confidence            float64
	DurationSeconds       float64
	ProcessingTimeSeconds float64
	ErrorMessage          string
}

// WordCount returns the number of whitespace-separated words in the
// transcribed text.
func (r TranscriptionResult) WordCount() int {
	return len(strings.Fields(r.Text))
}

// SheetWriteResult is the outcome of a single spreadsheet write attempt.
// RowNumber is 1-based and only meaningful when Success is true.
type SheetWriteResult struct {
	Success               bool
	RowNumber             int
	ErrorMessage          string
	ProcessingTimeSeconds float64
}

// WorkflowResult summarises one orchestration run. Errors is the sole
// anomaly channel to callers; the orchestrator never returns an error.
type WorkflowResult struct {
	RunID                   string
	Success                 bool
	EmailsProcessed         int
	TranscriptionsCompleted int
	ExcelRowsAdded          int
	Errors                  []string
	ProcessingTimeSeconds   float64
}

// SuccessRate is the percentage of processed emails that produced a
// completed transcription. Zero when no emails were processed.
func (r WorkflowResult) SuccessRate() float64 {
	if r.EmailsProcessed == 0 {
		return 0.0
	}
	return float64(r.TranscriptionsCompleted) / float64(r.EmailsProcessed) * 100
}
