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

package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRecognize_RequestShape verifies the endpoint path, query, headers,
// and body the client sends.
func TestRecognize_RequestShape(t *testing.T) {
	audio := []byte("fake-audio-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech/recognition/conversation/cognitiveservices/v1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("language"); got != "de-DE" {
			t.Errorf("language = %q, want de-DE", got)
		}
		if got := r.URL.Query().Get("format"); got != "detailed" {
			t.Errorf("format = %q, want detailed", got)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "key-123" {
			t.Errorf("subscription key = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != string(audio) {
			t.Error("audio body not forwarded verbatim")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"RecognitionStatus": "Success",
			"DisplayText":       "hello there",
			"Duration":          35000000,
		})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Endpoint: server.URL,
		APIKey:   "key-123",
		Language: "de-DE",
	})

	rec, err := client.Recognize(context.Background(), audio, "audio/wav")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if rec.Status != "Success" || rec.Text != "hello there" {
		t.Errorf("rec = %+v", rec)
	}
	if rec.DurationTicks != 35000000 {
		t.Errorf("DurationTicks = %d", rec.DurationTicks)
	}
}

// TestRecognize_NBestFallback verifies that text and confidence fall back
// to the top NBest entry when the top-level fields are empty.
func TestRecognize_NBestFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"RecognitionStatus": "Success",
			"Duration":          10000000,
			"NBest": []map[string]any{
				{"Display": "best hypothesis", "Confidence": 0.91},
				{"Display": "worse hypothesis", "Confidence": 0.42},
			},
		})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, APIKey: "k"})

	rec, err := client.Recognize(context.Background(), []byte("a"), "audio/wav")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if rec.Text != "best hypothesis" {
		t.Errorf("Text = %q", rec.Text)
	}
	if rec.Confidence != 0.91 {
		t.Errorf("Confidence = %v", rec.Confidence)
	}
}

// TestRecognize_HTTPError verifies the bounded error for non-200
// responses.
func TestRecognize_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid subscription key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, APIKey: "wrong"})

	if _, err := client.Recognize(context.Background(), []byte("a"), "audio/wav"); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

// TestNewClient_Defaults verifies the language default.
func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{Endpoint: "https://example/"})
	if client.language != "en-US" {
		t.Errorf("language = %q, want en-US", client.language)
	}
	if client.endpoint != "https://example" {
		t.Errorf("endpoint trailing slash kept: %q", client.endpoint)
	}
}
