package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"lotorder-engine/pkg/uid"

	"github.com/redis/go-redis/v9"
)

const (
	// lockKeyPrefix is the Redis key prefix for dealership order locks.
	lockKeyPrefix = "lotorder:lock:"

	// DefaultLeaseTTL bounds how long a crashed process can hold a
	// dealership lock.
	DefaultLeaseTTL = 15 * time.Minute
)

// releaseIfOwnedScript deletes a lock only when the caller still owns it,
// so an expired-and-reacquired lease is never released by its old holder.
var releaseIfOwnedScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DealershipLocker serializes orders per dealership. Two concurrent CAO
// computations against the same history could both observe "not yet
// ordered" for the same VIN and double-include it; the lock is what
// prevents that race. Dealerships are independent, so different dealerships
// never contend.
//
// In-process serialization always applies; when a Redis client is provided,
// a SetNX lease additionally serializes across processes.
type DealershipLocker struct {
	mu       sync.Mutex
	held     map[int64]bool
	redis    *redis.Client
	leaseTTL time.Duration
}

// NewDealershipLocker creates a locker. redisClient may be nil for
// single-process deployments.
func NewDealershipLocker(redisClient *redis.Client, leaseTTL time.Duration) *DealershipLocker {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	return &DealershipLocker{
		held:     make(map[int64]bool),
		redis:    redisClient,
		leaseTTL: leaseTTL,
	}
}

// Acquire takes the dealership's lock, returning a release func. It fails
// with ErrOrderInProgress instead of queueing: callers retry or report.
func (l *DealershipLocker) Acquire(ctx context.Context, dealershipID int64) (func(), error) {
	l.mu.Lock()
	if l.held[dealershipID] {
		l.mu.Unlock()
		return nil, ErrOrderInProgress
	}
	l.held[dealershipID] = true
	l.mu.Unlock()

	releaseLocal := func() {
		l.mu.Lock()
		delete(l.held, dealershipID)
		l.mu.Unlock()
	}

	if l.redis == nil {
		return releaseLocal, nil
	}

	key := fmt.Sprintf("%s%d", lockKeyPrefix, dealershipID)
	token := uid.New()

	ok, err := l.redis.SetNX(ctx, key, token, l.leaseTTL).Result()
	if err != nil {
		// Redis being down must not stop orders; in-process serialization
		// still holds.
		log.Printf("[DealershipLocker] Warning: Redis lease unavailable for dealership %d: %v", dealershipID, err)
		return releaseLocal, nil
	}
	if !ok {
		releaseLocal()
		return nil, ErrOrderInProgress
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseIfOwnedScript.Run(releaseCtx, l.redis, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Printf("[DealershipLocker] Warning: failed to release lease for dealership %d: %v", dealershipID, err)
		}
		releaseLocal()
	}, nil
}
