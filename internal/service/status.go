package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lotorder-engine/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	// statusKeyPrefix is the Redis key prefix for job status documents.
	statusKeyPrefix = "lotorder:job:"

	// statusTTL is how long a finished job's status stays queryable.
	statusTTL = 24 * time.Hour
)

// StatusStore publishes job outcomes for callers polling a job ID. The CLI
// and the dashboard both consume this same contract.
type StatusStore interface {
	Publish(ctx context.Context, status model.JobStatus) error
	Get(ctx context.Context, jobID string) (*model.JobStatus, error)
}

// RedisStatusStore keeps job status as TTL'd JSON documents in Redis.
type RedisStatusStore struct {
	redis *redis.Client
}

// NewRedisStatusStore creates a Redis-backed status store.
func NewRedisStatusStore(redisClient *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{redis: redisClient}
}

// Publish stores the status document.
func (s *RedisStatusStore) Publish(ctx context.Context, status model.JobStatus) error {
	status.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to serialize job status: %w", err)
	}
	if err := s.redis.Set(ctx, statusKeyPrefix+status.JobID, data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}
	return nil
}

// Get fetches a status document; nil means unknown or expired job.
func (s *RedisStatusStore) Get(ctx context.Context, jobID string) (*model.JobStatus, error) {
	data, err := s.redis.Get(ctx, statusKeyPrefix+jobID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job status: %w", err)
	}

	var status model.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse job status: %w", err)
	}
	return &status, nil
}

// MemoryStatusStore is the in-process fallback when Redis is unavailable.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]model.JobStatus
}

// NewMemoryStatusStore creates an in-memory status store.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]model.JobStatus)}
}

// Publish stores the status document in memory.
func (s *MemoryStatusStore) Publish(ctx context.Context, status model.JobStatus) error {
	status.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.statuses[status.JobID] = status
	s.mu.Unlock()
	return nil
}

// Get fetches a status document; nil means unknown job.
func (s *MemoryStatusStore) Get(ctx context.Context, jobID string) (*model.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.statuses[jobID]; ok {
		return &status, nil
	}
	return nil, nil
}

// Ensure both stores implement StatusStore
var (
	_ StatusStore = (*RedisStatusStore)(nil)
	_ StatusStore = (*MemoryStatusStore)(nil)
)
