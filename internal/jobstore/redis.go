package jobstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
	"github.com/skillsenselab/meet-transcriber/internal/redis"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

const keyPrefix = "job"

// RedisStore is the Redis-backed job store. Records are stored as JSON with
// the configured TTL refreshed on every write, so a job expires after the
// retention window following its last update.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRedisStore creates a job store on the given Redis client. A ttl of 0
// falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		log:    log.WithComponent("jobstore"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func key(id string) string {
	return keyPrefix + ":" + id
}

// jobLock returns the per-job mutex serializing read-modify-write cycles.
// The orchestrator is the sole writer after submission, so this guards
// against overlapping updates from a single process.
func (s *RedisStore) jobLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create persists a new pending job record.
func (s *RedisStore) Create(ctx context.Context, job *transcript.Job) error {
	if err := job.Validate(); err != nil {
		return errors.Internal(err)
	}
	if err := s.save(ctx, job); err != nil {
		return err
	}
	s.log.Debug("Job created", logger.Fields(logger.FieldJobID, job.ID))
	return nil
}

// Get loads a job snapshot.
func (s *RedisStore) Get(ctx context.Context, id string) (*transcript.Job, error) {
	raw, err := s.client.Get(ctx, key(id))
	if err != nil {
		if redis.IsNil(err) {
			return nil, errors.NotFound("job", id)
		}
		return nil, errors.StoreError("get", err)
	}

	var job transcript.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, errors.StoreError("unmarshal", err)
	}
	return &job, nil
}

// Update applies mutate under the job's lock and persists the result. A
// reader concurrent with Update sees either the previous or the new record,
// never a partial one: the JSON value is swapped in a single SET.
func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*transcript.Job) error) (*transcript.Job, error) {
	l := s.jobLock(id)
	l.Lock()
	defer l.Unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := job.Status
	if err := mutate(job); err != nil {
		return nil, err
	}
	if err := checkMutation(before, job); err != nil {
		return nil, err
	}

	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		s.releaseLock(id)
	}
	return job, nil
}

// Delete removes a job record and its lock. Deleting an unknown id is a
// no-op.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)); err != nil {
		return errors.StoreError("del", err)
	}
	s.releaseLock(id)
	return nil
}

// releaseLock drops the per-job mutex once no further updates can occur.
// A goroutine still holding the old mutex is harmless: a terminal record
// rejects any later mutation before it reaches save.
func (s *RedisStore) releaseLock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

func (s *RedisStore) save(ctx context.Context, job *transcript.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.StoreError("marshal", err)
	}
	if err := s.client.Set(ctx, key(job.ID), string(data), s.ttl); err != nil {
		return errors.StoreError("set", err)
	}
	return nil
}

// IsAvailable reports whether the backing Redis connection is healthy.
func (s *RedisStore) IsAvailable(ctx context.Context) bool {
	return s.client.IsAvailable(ctx)
}

var _ Store = (*RedisStore)(nil)
