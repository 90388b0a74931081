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

// Package events publishes completed transcriptions to Redis so
// downstream consumers can react without polling the workbook.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Transcript is the payload published for one completed transcription.
type Transcript struct {
	MessageID       string  `json:"message_id"`
	Filename        string  `json:"filename"`
	Text            string  `json:"text"`
	Confidence      float64 `json:"confidence"`
	DurationSeconds float64 `json:"duration_seconds"`
	Row             int     `json:"row"`
}

// envelope wraps a transcript for queue transport.
type envelope struct {
	ID          string `json:"id"`
	Task        string `json:"task"`
	PublishedAt string `json:"published_at"`
	Transcript
}

// Publisher sends transcript events to a Redis list queue.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{rdb: rdb, queueName: queueName}
}

// Publish serialises a transcript event and pushes it onto the queue.
func (p *Publisher) Publish(ctx context.Context, t Transcript) error {
	msg := envelope{
		ID:          uuid.New().String(),
		Task:        "scribe.transcript",
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
		Transcript:  t,
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal transcript event: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(msgJSON)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published transcript event",
		"event_id", msg.ID,
		"message_id", t.MessageID,
		"filename", t.Filename,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
