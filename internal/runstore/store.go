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

// Package runstore persists workflow run summaries in Postgres, one row
// per run.
package runstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/scribe/internal/models"
)

// Store records workflow runs in the workflow_runs table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a run store and ensures the schema exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure runstore schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id                       UUID PRIMARY KEY,
			started_at               TIMESTAMPTZ NOT NULL,
			finished_at              TIMESTAMPTZ NOT NULL,
			success                  BOOLEAN NOT NULL,
			emails_processed         INT NOT NULL,
			transcriptions_completed INT NOT NULL,
			rows_added               INT NOT NULL,
			errors                   TEXT[] NOT NULL DEFAULT '{}',
			duration_seconds         DOUBLE PRECISION NOT NULL
		)
	`)
	return err
}

// Record inserts one row summarising a completed run.
func (s *Store) Record(ctx context.Context, result models.WorkflowResult, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_runs
			(id, started_at, finished_at, success, emails_processed,
			 transcriptions_completed, rows_added, errors, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, runRow(result, startedAt)...)
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

// runRow builds the insert arguments for one run. The error list is
// coalesced to an empty slice: a nil slice would encode as SQL NULL and
// violate the NOT NULL constraint on every clean run.
func runRow(result models.WorkflowResult, startedAt time.Time) []any {
	finishedAt := startedAt.Add(time.Duration(result.ProcessingTimeSeconds * float64(time.Second)))

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}

	return []any{
		result.RunID,
		startedAt.UTC(),
		finishedAt.UTC(),
		result.Success,
		result.EmailsProcessed,
		result.TranscriptionsCompleted,
		result.ExcelRowsAdded,
		errs,
		result.ProcessingTimeSeconds,
	}
}
