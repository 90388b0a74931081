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

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bcem/scribe/internal/events"
	"github.com/bcem/scribe/internal/models"
)

// --- Mocks ---

type mockDiscoverer struct {
	emails []models.VoiceEmail
}

func (m *mockDiscoverer) FindVoiceEmails(_ context.Context, daysBack, maxEmails int) []models.VoiceEmail {
	return m.emails
}

type mockTranscriber struct {
	// failFiles maps filenames that should fail transcription.
	failFiles map[string]bool
	calls     []string
}

func (m *mockTranscriber) Transcribe(_ context.Context, content []byte, filename string) models.TranscriptionResult {
	m.calls = append(m.calls, filename)
	if m.failFiles[filename] {
		return models.TranscriptionResult{Success: false, ErrorMessage: "No speech detected in audio file"}
	}
	return models.TranscriptionResult{
		Success:         true,
		Text:            "transcript of " + filename,
		Confidence:      0.9,
		DurationSeconds: 5,
	}
}

type mockWriter struct {
	failAll bool
	rows    int
	calls   []string
}

func (m *mockWriter) Write(_ context.Context, tr models.TranscriptionResult, subject, sender string, date time.Time, filename string) models.SheetWriteResult {
	m.calls = append(m.calls, filename)
	if m.failAll {
		return models.SheetWriteResult{Success: false, ErrorMessage: "workbook not found"}
	}
	m.rows++
	return models.SheetWriteResult{Success: true, RowNumber: m.rows}
}

type mockMailbox struct {
	readErr   error
	moveErr   error
	folderID  string // existing folder; empty means not found
	created   int
	findCalls int
	read      []string
	moved     []string
}

func (m *mockMailbox) MarkRead(_ context.Context, messageID string) error {
	if m.readErr != nil {
		return m.readErr
	}
	m.read = append(m.read, messageID)
	return nil
}

func (m *mockMailbox) FindFolder(_ context.Context, name string) (string, error) {
	m.findCalls++
	return m.folderID, nil
}

func (m *mockMailbox) CreateFolder(_ context.Context, name string) (string, error) {
	m.created++
	return "folder-created", nil
}

func (m *mockMailbox) MoveMessage(_ context.Context, messageID, folderID string) error {
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moved = append(m.moved, messageID)
	return nil
}

type mockRecorder struct {
	recorded []models.WorkflowResult
}

func (m *mockRecorder) Record(_ context.Context, result models.WorkflowResult, _ time.Time) error {
	m.recorded = append(m.recorded, result)
	return nil
}

type mockPublisher struct {
	events []events.Transcript
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, t events.Transcript) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, t)
	return nil
}

// --- Test helpers ---

func voiceEmail(id string, filenames ...string) models.VoiceEmail {
	email := models.VoiceEmail{
		MessageID:    id,
		Subject:      "Voicemail " + id,
		Sender:       "caller@example.com",
		ReceivedDate: time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
	}
	for _, name := range filenames {
		email.VoiceAttachments = append(email.VoiceAttachments, models.VoiceAttachment{
			Filename: name,
			Content:  []byte("audio"),
			Size:     5,
		})
	}
	return email
}

type fixture struct {
	discoverer  *mockDiscoverer
	transcriber *mockTranscriber
	writer      *mockWriter
	mailbox     *mockMailbox
	recorder    *mockRecorder
	publisher   *mockPublisher
}

func newFixture(emails ...models.VoiceEmail) *fixture {
	return &fixture{
		discoverer:  &mockDiscoverer{emails: emails},
		transcriber: &mockTranscriber{failFiles: map[string]bool{}},
		writer:      &mockWriter{},
		mailbox:     &mockMailbox{folderID: "folder-1"},
		recorder:    &mockRecorder{},
		publisher:   &mockPublisher{},
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	return New(Config{
		Discoverer:  f.discoverer,
		Transcriber: f.transcriber,
		Writer:      f.writer,
		Mailbox:     f.mailbox,
		Recorder:    f.recorder,
		Publisher:   f.publisher,
	})
}

// TestRun_HappyPath verifies the full pipeline for one email with one
// attachment: transcription, sheet row, both mark-processed operations,
// the run record, and the transcript event.
func TestRun_HappyPath(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "vm.wav"))

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if !result.Success {
		t.Fatalf("Success = false; errors: %v", result.Errors)
	}
	if result.RunID == "" {
		t.Error("RunID not assigned")
	}
	if result.EmailsProcessed != 1 || result.TranscriptionsCompleted != 1 || result.ExcelRowsAdded != 1 {
		t.Errorf("counts = %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v", result.Errors)
	}
	if result.SuccessRate() != 100 {
		t.Errorf("SuccessRate = %v", result.SuccessRate())
	}

	if len(f.mailbox.read) != 1 || len(f.mailbox.moved) != 1 {
		t.Errorf("mark-processed incomplete: read=%v moved=%v", f.mailbox.read, f.mailbox.moved)
	}
	if len(f.recorder.recorded) != 1 {
		t.Errorf("run not recorded")
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].MessageID != "msg-1" {
		t.Errorf("events = %+v", f.publisher.events)
	}
}

// TestRun_EmptyMailbox verifies the zero result for empty discovery.
func TestRun_EmptyMailbox(t *testing.T) {
	f := newFixture()

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if result.Success {
		t.Error("Success = true with nothing processed")
	}
	if result.EmailsProcessed != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want clean zero result", result)
	}
	if result.SuccessRate() != 0 {
		t.Errorf("SuccessRate = %v, want 0", result.SuccessRate())
	}
	// The empty run is still recorded.
	if len(f.recorder.recorded) != 1 {
		t.Error("empty run not recorded")
	}
}

// TestRun_FirstSuccessStopsAttachments verifies that remaining
// attachments are skipped once one fully succeeds.
func TestRun_FirstSuccessStopsAttachments(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "first.wav", "second.wav", "third.wav"))

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if result.TranscriptionsCompleted != 1 {
		t.Errorf("TranscriptionsCompleted = %d, want 1", result.TranscriptionsCompleted)
	}
	if len(f.transcriber.calls) != 1 || f.transcriber.calls[0] != "first.wav" {
		t.Errorf("transcriber calls = %v, want just first.wav", f.transcriber.calls)
	}
}

// TestRun_FailedAttachmentFallsThrough verifies that a failed first
// attachment does not block the second from completing the email.
func TestRun_FailedAttachmentFallsThrough(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "silent.wav", "speech.wav"))
	f.transcriber.failFiles["silent.wav"] = true

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if !result.Success || result.TranscriptionsCompleted != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(f.transcriber.calls) != 2 {
		t.Errorf("transcriber calls = %v", f.transcriber.calls)
	}
	if len(f.writer.calls) != 1 || f.writer.calls[0] != "speech.wav" {
		t.Errorf("writer calls = %v", f.writer.calls)
	}
	// The email completed, so no error entry.
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v", result.Errors)
	}
}

// TestRun_AllAttachmentsFail verifies the per-email error entry and the
// overall failure when nothing transcribes.
func TestRun_AllAttachmentsFail(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "a.wav", "b.wav"))
	f.transcriber.failFiles["a.wav"] = true
	f.transcriber.failFiles["b.wav"] = true

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if result.Success {
		t.Error("Success = true with zero completions")
	}
	if result.EmailsProcessed != 1 || result.TranscriptionsCompleted != 0 {
		t.Errorf("counts = %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want one entry for the email", result.Errors)
	}
	if len(f.mailbox.read) != 0 || len(f.mailbox.moved) != 0 {
		t.Error("failed email was marked processed")
	}
}

// TestRun_SheetFailureFailsEmail verifies that a transcription success
// with a failed sheet write does not complete the email.
func TestRun_SheetFailureFailsEmail(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "vm.wav"))
	f.writer.failAll = true

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if result.Success || result.TranscriptionsCompleted != 0 || result.ExcelRowsAdded != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v", result.Errors)
	}
}

// TestRun_MixedEmails verifies independent processing and the success
// rate across a partial failure.
func TestRun_MixedEmails(t *testing.T) {
	f := newFixture(
		voiceEmail("msg-ok", "good.wav"),
		voiceEmail("msg-bad", "bad.wav"),
	)
	f.transcriber.failFiles["bad.wav"] = true

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if !result.Success {
		t.Error("one completed email should make the run successful")
	}
	if result.EmailsProcessed != 2 || result.TranscriptionsCompleted != 1 {
		t.Errorf("counts = %+v", result)
	}
	if result.SuccessRate() != 50 {
		t.Errorf("SuccessRate = %v, want 50", result.SuccessRate())
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v", result.Errors)
	}
}

// TestRun_PartialMarkProcessed verifies that a move failure after a
// successful read flag never rolls back the sheet write.
func TestRun_PartialMarkProcessed(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "vm.wav"))
	f.mailbox.moveErr = errors.New("folder locked")

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if !result.Success || result.ExcelRowsAdded != 1 {
		t.Errorf("result = %+v, want the write preserved", result)
	}
	if len(f.mailbox.read) != 1 {
		t.Error("read flag not set")
	}
}

// TestRun_CreatesProcessedFolder verifies find-then-create and the
// per-run folder cache.
func TestRun_CreatesProcessedFolder(t *testing.T) {
	f := newFixture(
		voiceEmail("msg-1", "a.wav"),
		voiceEmail("msg-2", "b.wav"),
	)
	f.mailbox.folderID = "" // not found, must be created

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if result.TranscriptionsCompleted != 2 {
		t.Fatalf("result = %+v", result)
	}
	if f.mailbox.created != 1 {
		t.Errorf("CreateFolder called %d times, want 1", f.mailbox.created)
	}
	if f.mailbox.findCalls != 1 {
		t.Errorf("FindFolder called %d times, want 1 (cached)", f.mailbox.findCalls)
	}
	if len(f.mailbox.moved) != 2 {
		t.Errorf("moved = %v", f.mailbox.moved)
	}
}

// TestRun_PublisherFailureIsNotFatal verifies that event publish errors
// never affect the result.
func TestRun_PublisherFailureIsNotFatal(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "vm.wav"))
	f.publisher.err = errors.New("redis down")

	result := f.orchestrator().Run(context.Background(), 10, 7)

	if !result.Success {
		t.Errorf("publish failure failed the run: %+v", result)
	}
}

// TestRun_NilOptionalCollaborators verifies the orchestrator works with
// no recorder and no publisher configured.
func TestRun_NilOptionalCollaborators(t *testing.T) {
	f := newFixture(voiceEmail("msg-1", "vm.wav"))
	o := New(Config{
		Discoverer:  f.discoverer,
		Transcriber: f.transcriber,
		Writer:      f.writer,
		Mailbox:     f.mailbox,
	})

	result := o.Run(context.Background(), 10, 7)
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
}
