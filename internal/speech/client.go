// Copyright (c) 2026 John Earle
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://github.com/yourusername/bcem/blob/main/LICENSE
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package speech implements a client for the Azure Cognitive Services
// short-audio recognition REST endpoint.
//
// API docs: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/rest-speech-to-text-short
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Recognition is the provider-shaped result of one recognition call.
// Interpretation into a workflow result happens in the transcription
// gateway, not here.
type Recognition struct {
	Status        string
	Text          string
	Confidence    float64
	DurationTicks int64 // provider reports duration in 100ns units
}

// Client talks to the Azure Speech recognition endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	language   string
}

// ClientConfig holds the settings for the speech client.
type ClientConfig struct {
	Endpoint string // e.g. https://eastus.stt.speech.microsoft.com
	APIKey   string
	Language string // defaults to en-US

	// HTTPClient is overridable for tests.
	HTTPClient *http.Client
}

// NewClient creates a speech recognition client.
func NewClient(cfg ClientConfig) *Client {
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		language:   language,
	}
}

// Recognize submits audio bytes for synchronous recognition and returns
// the provider's classification of the result.
func (c *Client) Recognize(ctx context.Context, audio []byte, contentType string) (Recognition, error) {
	params := url.Values{}
	params.Set("language", c.language)
	params.Set("format", "detailed")

	u := fmt.Sprintf("%s/speech/recognition/conversation/cognitiveservices/v1?%s", c.endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return Recognition{}, fmt.Errorf("build recognition request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Recognition{}, fmt.Errorf("recognition request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Recognition{}, fmt.Errorf("speech service returned HTTP %d: %s", resp.StatusCode, snippet(body))
	}

	var payload struct {
		RecognitionStatus string  `json:"RecognitionStatus"`
		DisplayText       string  `json:"DisplayText"`
		Confidence        float64 `json:"Confidence"`
		Duration          int64   `json:"Duration"`
		NBest             []struct {
			Display    string  `json:"Display"`
			Confidence float64 `json:"Confidence"`
		} `json:"NBest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Recognition{}, fmt.Errorf("decode recognition response: %w", err)
	}

	rec := Recognition{
		Status:        payload.RecognitionStatus,
		Text:          payload.DisplayText,
		Confidence:    payload.Confidence,
		DurationTicks: payload.Duration,
	}

	// The detailed format carries the text and confidence in NBest; the
	// top-level fields are not always populated.
	if len(payload.NBest) > 0 {
		if rec.Text == "" {
			rec.Text = payload.NBest[0].Display
		}
		if rec.Confidence == 0 {
			rec.Confidence = payload.NBest[0].Confidence
		}
	}

	return rec, nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
