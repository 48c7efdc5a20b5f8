package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

// MemoryStore is an in-process job store with the same serialization and TTL
// semantics as the Redis store. It backs single-node deployments without
// Redis and the test suite.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	job       transcript.Job
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store. A ttl of 0 falls back to
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create persists a new pending job record.
func (s *MemoryStore) Create(_ context.Context, job *transcript.Job) error {
	if err := job.Validate(); err != nil {
		return errors.Internal(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[job.ID] = &memoryEntry{
		job:       job.Snapshot(),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Get loads a job snapshot, honoring expiry lazily. The snapshot is taken
// under the read lock so a concurrent Update never exposes a partial record.
func (s *MemoryStore) Get(_ context.Context, id string) (*transcript.Job, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	if ok && !s.now().After(entry.expiresAt) {
		job := entry.job.Snapshot()
		s.mu.RUnlock()
		return &job, nil
	}
	s.mu.RUnlock()

	if ok {
		s.evict(id)
	}
	return nil, errors.NotFound("job", id)
}

// Update applies mutate under the store lock. Readers see either the prior
// or the new record.
func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*transcript.Job) error) (*transcript.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		return nil, errors.NotFound("job", id)
	}

	job := entry.job.Snapshot()
	before := job.Status
	if err := mutate(&job); err != nil {
		return nil, err
	}
	if err := checkMutation(before, &job); err != nil {
		return nil, err
	}

	entry.job = job
	entry.expiresAt = s.now().Add(s.ttl)
	snapshot := job.Snapshot()
	return &snapshot, nil
}

// Delete removes a job record. Deleting an unknown id is a no-op.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// evict removes an entry once it is past its deadline. The deadline is
// re-checked under the write lock because an Update may have refreshed it.
func (s *MemoryStore) evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok && s.now().After(entry.expiresAt) {
		delete(s.entries, id)
	}
}

// IsAvailable always reports true for the in-memory store.
func (s *MemoryStore) IsAvailable(context.Context) bool { return true }

var _ Store = (*MemoryStore)(nil)
