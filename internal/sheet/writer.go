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

// Package sheet appends transcription rows to the target workbook:
// resolve the file, determine the next row, write a fixed ten-column
// record, then apply best-effort cosmetic formatting. Formatting failures
// never fail an otherwise-successful data write.
package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcem/scribe/internal/models"
	"github.com/bcem/scribe/internal/sanitize"
)

// RangeFormat describes the cosmetic formatting applied to a cell range.
// Zero-valued fields are omitted from the provider request.
type RangeFormat struct {
	NumberFormat        string
	WrapText            bool
	HorizontalAlignment string
	VerticalAlignment   string
	FontName            string
	FontSize            float64
	Bold                bool
	FontColor           string
	FillColor           string
}

// FileMetadata is basic workbook file information used for access checks.
type FileMetadata struct {
	Name string
	Size int64
}

// Client is the spreadsheet capability the writer consumes. Implemented
// by msgraph.WorkbookClient.
type Client interface {
	// FindFile resolves a file name to an identifier; ("", nil) when absent.
	FindFile(ctx context.Context, name string) (string, error)
	// UsedRowCount reports the row count of the sheet's used range.
	UsedRowCount(ctx context.Context, fileID string) (int, error)
	WriteRange(ctx context.Context, fileID, address string, values [][]any) error
	SetRangeFormat(ctx context.Context, fileID, address string, format RangeFormat) error
	SetColumnWidth(ctx context.Context, fileID, column string, width int) error
	FileInfo(ctx context.Context, fileID string) (FileMetadata, error)
}

// Writer appends rows to the configured workbook. The resolved file
// identifier is cached for the lifetime of the process; file identity is
// assumed stable across a run.
type Writer struct {
	client   Client
	fileName string
	fileID   string
	now      func() time.Time
}

// NewWriter creates a sheet writer targeting the named workbook. An
// unusable configured name falls back to the default transcription log.
func NewWriter(client Client, fileName string) *Writer {
	cleaned, ok := sanitize.SpreadsheetFilename(fileName)
	if !ok {
		cleaned = "scribe_transcriptions.xlsx"
		if fileName != "" {
			slog.Warn("workbook filename rejected, using default",
				"configured", fileName,
				"using", cleaned,
			)
		}
	}
	return &Writer{client: client, fileName: cleaned, now: time.Now}
}

// Write appends one transcription row. RESOLVE_FILE and DETERMINE_ROW
// failures short-circuit with a failed result; formatting failures are
// swallowed after the data write succeeds.
func (w *Writer) Write(
	ctx context.Context,
	tr models.TranscriptionResult,
	emailSubject string,
	emailSender string,
	emailDate time.Time,
	attachmentFilename string,
) models.SheetWriteResult {
	start := time.Now()

	fileID, err := w.resolveFile(ctx)
	if err != nil {
		return failedWrite(fmt.Sprintf("workbook %q not found or inaccessible: %v", w.fileName, err), start)
	}

	row := w.nextRow(ctx, fileID)

	address := fmt.Sprintf("A%d:J%d", row, row)
	values := [][]any{w.rowValues(tr, emailSubject, emailSender, emailDate, attachmentFilename)}
	if err := w.client.WriteRange(ctx, fileID, address, values); err != nil {
		return failedWrite(fmt.Sprintf("write row %d: %v", row, err), start)
	}

	w.formatRow(ctx, fileID, row)

	slog.Info("transcription row written",
		"workbook", w.fileName,
		"row", row,
		"filename", attachmentFilename,
	)

	return models.SheetWriteResult{
		Success:               true,
		RowNumber:             row,
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}
}

// resolveFile locates the workbook by name, caching the identifier.
func (w *Writer) resolveFile(ctx context.Context) (string, error) {
	if w.fileID != "" {
		return w.fileID, nil
	}

	id, err := w.client.FindFile(ctx, w.fileName)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no file named %q", w.fileName)
	}

	w.fileID = id
	slog.Debug("workbook resolved", "name", w.fileName, "file_id", id)
	return id, nil
}

// nextRow computes the insertion row from the sheet's used range. An
// empty or unreadable sheet starts at row 1.
func (w *Writer) nextRow(ctx context.Context, fileID string) int {
	count, err := w.client.UsedRowCount(ctx, fileID)
	if err != nil {
		slog.Debug("used range unavailable, starting at row 1", "workbook", w.fileName, "err", err)
		return 1
	}
	if count < 0 {
		count = 0
	}
	return count + 1
}

// rowValues builds the fixed ten-column record A..J. Every text field is
// re-sanitised at this boundary and the numeric fields are clamped,
// independent of upstream validation.
func (w *Writer) rowValues(
	tr models.TranscriptionResult,
	emailSubject string,
	emailSender string,
	emailDate time.Time,
	attachmentFilename string,
) []any {
	const stampLayout = "2006-01-02 15:04:05 UTC"

	filename, ok := sanitize.Filename(attachmentFilename)
	if !ok {
		filename = "unknown_file"
	}

	confidence := tr.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	duration := tr.DurationSeconds
	if duration < 0 {
		duration = 0
	}

	wordCount := tr.WordCount()
	if wordCount < 0 {
		wordCount = 0
	}

	status := "Failed"
	if tr.Success {
		status = "Success"
	}

	return []any{
		w.now().UTC().Format(stampLayout),     // A: processing timestamp
		emailDate.UTC().Format(stampLayout),   // B: email date
		sanitize.EmailAddress(emailSender),    // C: sender
		sanitize.Subject(emailSubject),        // D: subject
		filename,                              // E: attachment filename
		sanitize.TranscriptText(tr.Text),      // F: transcription text
		confidence,                            // G: confidence [0,1]
		duration,                              // H: duration seconds
		wordCount,                             // I: word count
		status,                                // J: status literal
	}
}

// formatRow applies cosmetic formatting to a written row. Each sub-step
// swallows its own failure; a partially formatted row is acceptable.
func (w *Writer) formatRow(ctx context.Context, fileID string, row int) {
	// Transcription text column: wrapped, top-aligned.
	w.tryFormat(ctx, fileID, fmt.Sprintf("F%d", row), RangeFormat{
		WrapText:          true,
		VerticalAlignment: "Top",
		FontName:          "Calibri",
		FontSize:          10,
	})

	// Timestamp columns.
	for _, col := range []string{"A", "B"} {
		w.tryFormat(ctx, fileID, fmt.Sprintf("%s%d", col, row), RangeFormat{
			NumberFormat: "yyyy-mm-dd hh:mm:ss",
			FontName:     "Calibri",
			FontSize:     9,
		})
	}

	// Confidence and duration columns.
	for _, col := range []string{"G", "H"} {
		w.tryFormat(ctx, fileID, fmt.Sprintf("%s%d", col, row), RangeFormat{
			NumberFormat:        "0.00",
			HorizontalAlignment: "Right",
			FontName:            "Calibri",
			FontSize:            10,
		})
	}

	// Status column.
	w.tryFormat(ctx, fileID, fmt.Sprintf("J%d", row), RangeFormat{
		HorizontalAlignment: "Center",
		Bold:                true,
		FontName:            "Calibri",
		FontSize:            10,
	})
}

func (w *Writer) tryFormat(ctx context.Context, fileID, address string, format RangeFormat) {
	if err := w.client.SetRangeFormat(ctx, fileID, address, format); err != nil {
		slog.Warn("row formatting failed",
			"workbook", w.fileName,
			"address", address,
			"err", err,
		)
	}
}

// WriteHeaders writes and styles the header row and sets column widths.
// Used by the setup command when provisioning a fresh workbook.
func (w *Writer) WriteHeaders(ctx context.Context) error {
	fileID, err := w.resolveFile(ctx)
	if err != nil {
		return fmt.Errorf("resolve workbook: %w", err)
	}

	headers := [][]any{{
		"Processing Timestamp",
		"Email Date",
		"Email Sender",
		"Email Subject",
		"Attachment Filename",
		"Transcription Text",
		"Confidence Score",
		"Audio Duration (sec)",
		"Word Count",
		"Status",
	}}

	if err := w.client.WriteRange(ctx, fileID, "A1:J1", headers); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	w.tryFormat(ctx, fileID, "A1:J1", RangeFormat{
		Bold:                true,
		FontColor:           "#FFFFFF",
		FillColor:           "#4F81BD",
		FontName:            "Calibri",
		FontSize:            11,
		HorizontalAlignment: "Center",
		VerticalAlignment:   "Center",
	})

	widths := map[string]int{
		"A": 20, "B": 20, "C": 25, "D": 30, "E": 20,
		"F": 50, "G": 15, "H": 15, "I": 12, "J": 12,
	}
	for _, col := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		if err := w.client.SetColumnWidth(ctx, fileID, col, widths[col]); err != nil {
			slog.Warn("set column width failed", "column", col, "err", err)
		}
	}

	return nil
}

// VerifyAccess checks that the workbook can be resolved and read.
// Diagnostic only.
func (w *Writer) VerifyAccess(ctx context.Context) error {
	fileID, err := w.resolveFile(ctx)
	if err != nil {
		return err
	}

	info, err := w.client.FileInfo(ctx, fileID)
	if err != nil {
		return fmt.Errorf("read workbook info: %w", err)
	}

	slog.Info("workbook access verified", "name", info.Name, "size", info.Size)
	return nil
}

func failedWrite(msg string, start time.Time) models.SheetWriteResult {
	slog.Error("sheet write failed", "err", msg)
	return models.SheetWriteResult{
		Success:               false,
		ErrorMessage:          msg,
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}
}
