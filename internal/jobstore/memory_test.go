package jobstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

func pendingJob(id string) *transcript.Job {
	return &transcript.Job{
		ID:        id,
		Status:    transcript.StatusPending,
		Message:   "queued",
		CreatedAt: time.Now().UTC(),
	}
}

func completeJob(t *testing.T, s Store, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Update(ctx, id, func(j *transcript.Job) error {
		j.Status = transcript.StatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.Update(ctx, id, func(j *transcript.Job) error {
		now := time.Now().UTC()
		j.Status = transcript.StatusCompleted
		j.Progress = 100
		j.Result = &transcript.Result{Segments: []transcript.Segment{}}
		j.CompletedAt = &now
		return nil
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != transcript.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}

	_, err = s.Get(ctx, "missing")
	if code := apperrors.CodeOf(err); code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND for unknown id, got %s", code)
	}
}

func TestMemoryStoreUpdateIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A failed mutation must leave the stored record untouched.
	_, err := s.Update(ctx, "a", func(j *transcript.Job) error {
		j.Status = transcript.StatusCompleted
		j.Progress = 40
		return nil
	})
	if err == nil {
		t.Fatal("expected the invalid transition to be rejected")
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != transcript.StatusPending || got.Progress != 0 {
		t.Errorf("rejected update leaked into the record: %+v", got)
	}
}

func TestMemoryStoreTerminalStateIsFinal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	completeJob(t, s, "a")

	_, err := s.Update(ctx, "a", func(j *transcript.Job) error {
		j.Status = transcript.StatusProcessing
		j.Result = nil
		return nil
	})
	if err == nil {
		t.Fatal("expected the transition out of completed to be rejected")
	}

	got, _ := s.Get(ctx, "a")
	if got.Status != transcript.StatusCompleted {
		t.Errorf("terminal state left: %s", got.Status)
	}
}

func TestMemoryStoreResultErrorInvariant(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*transcript.Job) error
	}{
		{
			"completed without result",
			func(j *transcript.Job) error {
				j.Status = transcript.StatusCompleted
				return nil
			},
		},
		{
			"failed without error",
			func(j *transcript.Job) error {
				j.Status = transcript.StatusFailed
				return nil
			},
		},
		{
			"processing with result",
			func(j *transcript.Job) error {
				j.Result = &transcript.Result{}
				return nil
			},
		},
		{
			"failed with result and error",
			func(j *transcript.Job) error {
				j.Status = transcript.StatusFailed
				j.Error = "boom"
				j.Result = &transcript.Result{}
				return nil
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStore(time.Hour)
			if err := s.Create(ctx, pendingJob("a")); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := s.Update(ctx, "a", func(j *transcript.Job) error {
				j.Status = transcript.StatusProcessing
				return nil
			}); err != nil {
				t.Fatalf("claim: %v", err)
			}
			if _, err := s.Update(ctx, "a", tc.mutate); err == nil {
				t.Error("expected the invariant violation to be rejected")
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	current := time.Now()
	s.now = func() time.Time { return current }

	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A write refreshes the TTL.
	current = current.Add(30 * time.Second)
	if _, err := s.Update(ctx, "a", func(j *transcript.Job) error {
		j.Progress = 10
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	current = current.Add(45 * time.Second)
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("job expired despite refreshed TTL: %v", err)
	}

	current = current.Add(time.Hour)
	_, err := s.Get(ctx, "a")
	if code := apperrors.CodeOf(err); code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND after expiry, got %v", err)
	}
}

func TestMemoryStoreSnapshotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := s.Get(ctx, "a")
	got.Progress = 99

	again, _ := s.Get(ctx, "a")
	if again.Progress != 0 {
		t.Error("mutating a returned snapshot must not affect the store")
	}
}

func TestMemoryStoreConcurrentReadersSeeWholeRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Update(ctx, "a", func(j *transcript.Job) error {
		j.Status = transcript.StatusProcessing
		j.Message = "step 0"
		return nil
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	const writes = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= writes; i++ {
			i := i
			if _, err := s.Update(ctx, "a", func(j *transcript.Job) error {
				j.Progress = i % 100
				j.Message = fmt.Sprintf("step %d", i%100)
				return nil
			}); err != nil {
				t.Errorf("update %d: %v", i, err)
				return
			}
		}
	}()

	// Progress and message are written together, so any snapshot where they
	// disagree is a torn read.
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				job, err := s.Get(ctx, "a")
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				if want := fmt.Sprintf("step %d", job.Progress); job.Message != want {
					t.Errorf("torn read: progress=%d message=%q", job.Progress, job.Message)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryStoreEvictsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	current := time.Now()
	s.now = func() time.Time { return current }

	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, pendingJob("b")); err != nil {
		t.Fatalf("create: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "a"); apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND after expiry, got %v", err)
	}
	if _, err := s.Update(ctx, "b", func(j *transcript.Job) error {
		j.Progress = 10
		return nil
	}); apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND after expiry, got %v", err)
	}

	s.mu.RLock()
	remaining := len(s.entries)
	s.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("expected expired entries to be removed, %d remain", remaining)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	if err := s.Create(ctx, pendingJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND after delete, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting an unknown id must be a no-op, got %v", err)
	}
}
