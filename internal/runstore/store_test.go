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

package runstore

import (
	"testing"
	"time"

	"github.com/bcem/scribe/internal/models"
)

// TestRunRow_CleanRunErrors verifies that a run with no errors inserts
// an empty array, never NULL — the errors column is NOT NULL and clean
// runs are the common case.
func TestRunRow_CleanRunErrors(t *testing.T) {
	started := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	result := models.WorkflowResult{
		RunID:                   "run-1",
		Success:                 true,
		EmailsProcessed:         2,
		TranscriptionsCompleted: 2,
		ExcelRowsAdded:          2,
		ProcessingTimeSeconds:   1.5,
	}

	args := runRow(result, started)
	if len(args) != 9 {
		t.Fatalf("got %d args, want 9", len(args))
	}

	errs, ok := args[7].([]string)
	if !ok {
		t.Fatalf("errors arg is %T, want []string", args[7])
	}
	if errs == nil {
		t.Fatal("nil error slice reached the insert; would encode as SQL NULL")
	}
	if len(errs) != 0 {
		t.Errorf("errors = %v, want empty", errs)
	}
}

// TestRunRow_CarriesErrorsAndTimes verifies the error list passes
// through and finished_at derives from the run duration.
func TestRunRow_CarriesErrorsAndTimes(t *testing.T) {
	started := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	result := models.WorkflowResult{
		RunID:                 "run-2",
		Errors:                []string{"email \"x\" from y: no attachment transcribed successfully"},
		ProcessingTimeSeconds: 2,
	}

	args := runRow(result, started)

	errs := args[7].([]string)
	if len(errs) != 1 {
		t.Errorf("errors = %v", errs)
	}

	finished, ok := args[2].(time.Time)
	if !ok {
		t.Fatalf("finished_at arg is %T", args[2])
	}
	if want := started.Add(2 * time.Second); !finished.Equal(want) {
		t.Errorf("finished_at = %v, want %v", finished, want)
	}
}
