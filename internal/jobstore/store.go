// Package jobstore provides the durable job record store. It is the only
// shared mutable state in the pipeline: writes to a given job are serialized,
// reads always observe a complete record, and entries expire after a
// configured retention window.
package jobstore

import (
	"context"
	"time"

	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

// DefaultTTL is the retention window applied when none is configured.
const DefaultTTL = 24 * time.Hour

// Store is the job state store API. The pipeline orchestrator is the sole
// writer after submission; polling clients read through Get.
type Store interface {
	// Create persists a new job record. The job must be in the pending state.
	Create(ctx context.Context, job *transcript.Job) error

	// Get returns a snapshot of the job. Fails with NOT_FOUND for unknown or
	// expired identifiers.
	Get(ctx context.Context, id string) (*transcript.Job, error)

	// Update applies mutate to the current record and persists the result
	// atomically with respect to other Updates of the same job. The mutated
	// record must not leave a terminal state and must satisfy the
	// result/error invariant; violations abort the update.
	Update(ctx context.Context, id string, mutate func(*transcript.Job) error) (*transcript.Job, error)

	// Delete removes a job record outright, bypassing the transition table.
	// Used to retract a pending job that was never handed to the pipeline;
	// deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error
}

// checkMutation enforces the store-level invariants on a mutated record.
func checkMutation(before transcript.Status, after *transcript.Job) error {
	if before.IsTerminal() && after.Status != before {
		return errTerminalTransition(before, after.Status)
	}
	if before != after.Status && !before.IsTerminal() && !before.CanTransitionTo(after.Status) {
		return errInvalidTransition(before, after.Status)
	}
	return after.Validate()
}
