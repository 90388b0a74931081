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

// Package sanitize validates and cleans values crossing the boundary from
// external providers: attachment filenames, sender addresses, subjects,
// and transcript text. Every component re-runs these checks on its own
// inputs rather than trusting upstream callers.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTextLength bounds transcript text written to the sheet.
	MaxTextLength = 50000
	// MaxFilenameLength is the standard filesystem limit.
	MaxFilenameLength = 255
	// MaxEmailLength per RFC 3696.
	MaxEmailLength = 320
	// MaxSubjectLength per RFC 5322.
	MaxSubjectLength = 998
)

var (
	// dangerousPattern matches script injection and path traversal
	// sequences, including URL-encoded variants.
	dangerousPattern = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>|javascript:|data:.*base64|vbscript:|onload\s*=|onerror\s*=|onclick\s*=|\.\./|\.\.\\|%2e%2e%2f|%252e%252e%252f`)

	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	controlPattern  = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	unsafeRunes     = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	lineBreakRuns   = regexp.MustCompile(`\r\n|\r|\n`)
	safeFilename    = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Filename validates and sanitises an attachment filename. Names carrying
// path separators, traversal sequences, or injection patterns are rejected
// outright; unsafe runes in otherwise-acceptable names are replaced with
// underscores. Returns the cleaned name and whether it is usable.
func Filename(name string) (string, bool) {
	if name == "" || len(name) > MaxFilenameLength {
		return "", false
	}

	name = strings.TrimSpace(name)

	// Path traversal is a hard reject, not a cleanup.
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	if dangerousPattern.MatchString(name) {
		return "", false
	}

	name = controlPattern.ReplaceAllString(name, "")
	if name == "" {
		return "", false
	}

	if !safeFilename.MatchString(name) {
		name = unsafeRunes.ReplaceAllString(name, "_")
	}

	return name, true
}

// AudioFilename validates a filename and requires the single allowed
// audio extension. Non-WAV audio files are skipped by policy, not errored.
func AudioFilename(name string) (string, bool) {
	cleaned, ok := Filename(name)
	if !ok {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(cleaned), ".wav") {
		return "", false
	}
	return cleaned, true
}

// SpreadsheetFilename validates a workbook filename (.xlsx or .xls).
func SpreadsheetFilename(name string) (string, bool) {
	cleaned, ok := Filename(name)
	if !ok {
		return "", false
	}
	lower := strings.ToLower(cleaned)
	if !strings.HasSuffix(lower, ".xlsx") && !strings.HasSuffix(lower, ".xls") {
		return "", false
	}
	return cleaned, true
}

// EmailAddress validates a sender address. Anything that fails the shape
// check degrades to the sentinel "Unknown" rather than failing the caller.
func EmailAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || len(addr) > MaxEmailLength {
		return "Unknown"
	}
	if !emailPattern.MatchString(addr) {
		return "Unknown"
	}
	if dangerousPattern.MatchString(addr) {
		return "Unknown"
	}
	return addr
}

// Subject sanitises an email subject: length-capped, HTML-escaped, with
// injection patterns and control characters stripped. Empty input (or
// input reduced to nothing) becomes "No Subject".
func Subject(s string) string {
	s = truncate(s, MaxSubjectLength)
	s = html.EscapeString(strings.TrimSpace(s))
	s = dangerousPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	if s == "" {
		return "No Subject"
	}
	return s
}

// TranscriptText sanitises transcription output: length-capped, escaped,
// line endings folded to spaces, and whitespace runs collapsed.
func TranscriptText(s string) string {
	s = truncate(s, MaxTextLength)
	s = html.EscapeString(strings.TrimSpace(s))
	s = dangerousPattern.ReplaceAllString(s, "")
	s = lineBreakRuns.ReplaceAllString(s, " ")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// AudioFormat classifies audio content by its leading magic numbers.
// Returns the detected container name and whether the signature was
// recognised. Callers decide what to do with unknown signatures.
func AudioFormat(data []byte) (string, bool) {
	if len(data) < 12 {
		return "", false
	}

	switch {
	case string(data[:4]) == "RIFF" && strings.Contains(string(data[:12]), "WAVE"):
		return "wav", true
	case string(data[:3]) == "ID3" || (data[0] == 0xff && data[1] == 0xfb):
		return "mp3", true
	case string(data[4:11]) == "ftypM4A":
		return "m4a", true
	case string(data[:4]) == "OggS":
		return "ogg", true
	case string(data[:4]) == "fLaC":
		return "flac", true
	}

	return "", false
}
