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

// Package transcribe submits audio to the speech provider and normalises
// the provider's status classification into a TranscriptionResult. This
// boundary never lets a transport fault propagate as an error.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bcem/scribe/internal/models"
	"github.com/bcem/scribe/internal/sanitize"
	"github.com/bcem/scribe/internal/speech"
)

const (
	// maxAudioBytes is the hard ceiling enforced before any network call.
	maxAudioBytes = 50 * 1024 * 1024
	// requestTimeout bounds one synchronous recognition call.
	requestTimeout = 60 * time.Second
	// ticksPerSecond converts the provider's 100ns duration units.
	ticksPerSecond = 10_000_000
)

// SpeechClient is the capability the gateway needs from the speech
// provider. Implemented by speech.Client.
type SpeechClient interface {
	Recognize(ctx context.Context, audio []byte, contentType string) (speech.Recognition, error)
}

// Gateway converts audio bytes into transcription results.
type Gateway struct {
	client  SpeechClient
	timeout time.Duration
}

// NewGateway creates a transcription gateway.
func NewGateway(client SpeechClient) *Gateway {
	return &Gateway{client: client, timeout: requestTimeout}
}

// Transcribe submits audio for recognition. It always returns a result,
// never an error: pre-flight rejections, provider failures, and transport
// faults all become failed results with elapsed time recorded.
func (g *Gateway) Transcribe(ctx context.Context, content []byte, filename string) models.TranscriptionResult {
	start := time.Now()

	if len(content) == 0 {
		return models.TranscriptionResult{
			Success:      false,
			ErrorMessage: "no audio data provided",
		}
	}
	if len(content) > maxAudioBytes {
		return models.TranscriptionResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("audio file too large: %d bytes (max: %d)", len(content), maxAudioBytes),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rec, err := g.client.Recognize(ctx, content, contentTypeFor(filename))
	if err != nil {
		elapsed := time.Since(start).Seconds()
		slog.Warn("transcription request failed",
			"filename", filename,
			"elapsed_seconds", elapsed,
			"err", err,
		)
		msg := "transcription request failed: " + err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = "transcription request timed out"
		}
		return models.TranscriptionResult{
			Success:               false,
			ErrorMessage:          msg,
			ProcessingTimeSeconds: elapsed,
		}
	}

	return g.interpret(rec, time.Since(start).Seconds())
}

// interpret maps the provider's three-way status classification onto a
// normalised result.
func (g *Gateway) interpret(rec speech.Recognition, elapsed float64) models.TranscriptionResult {
	switch rec.Status {
	case "Success":
		return models.TranscriptionResult{
			Success:               true,
			Text:                  sanitize.TranscriptText(rec.Text),
			Confidence:            rec.Confidence,
			DurationSeconds:       float64(rec.DurationTicks) / ticksPerSecond,
			ProcessingTimeSeconds: elapsed,
		}

	case "NoMatch":
		// Distinguishable from transport failure for diagnostics.
		return models.TranscriptionResult{
			Success:               false,
			ErrorMessage:          "No speech detected in audio file",
			ProcessingTimeSeconds: elapsed,
		}

	default:
		return models.TranscriptionResult{
			Success:               false,
			ErrorMessage:          fmt.Sprintf("Recognition failed: %s", rec.Status),
			ProcessingTimeSeconds: elapsed,
		}
	}
}

// contentTypeFor derives the request content type from the filename
// extension, defaulting to WAV for anything unrecognised.
func contentTypeFor(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".m4a"):
		return "audio/mp4"
	case strings.HasSuffix(lower, ".ogg"):
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
