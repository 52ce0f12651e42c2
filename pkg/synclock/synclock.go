package synclock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is the per-integration "running" marker. Acquire is a compare-and-set,
// never a mutex held across the external call: the job holds the marker, not
// a goroutine.
type Locker interface {
	// TryAcquire returns false without blocking when the marker is already set.
	TryAcquire(ctx context.Context, integrationID int64) (bool, error)
	Release(ctx context.Context, integrationID int64) error
	Held(ctx context.Context, integrationID int64) (bool, error)
}

// lockTTL is a crash backstop only; the sync job bound is 180s and every code
// path releases explicitly.
const lockTTL = 240 * time.Second

type redisLocker struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) Locker {
	return &redisLocker{rdb: rdb}
}

func key(integrationID int64) string {
	return fmt.Sprintf("leema:sync:running:%d", integrationID)
}

func (l *redisLocker) TryAcquire(ctx context.Context, integrationID int64) (bool, error) {
	return l.rdb.SetNX(ctx, key(integrationID), "1", lockTTL).Result()
}

func (l *redisLocker) Release(ctx context.Context, integrationID int64) error {
	return l.rdb.Del(ctx, key(integrationID)).Err()
}

func (l *redisLocker) Held(ctx context.Context, integrationID int64) (bool, error) {
	n, err := l.rdb.Exists(ctx, key(integrationID)).Result()
	return n > 0, err
}

type memoryLocker struct {
	mu      sync.Mutex
	running map[int64]struct{}
}

// NewMemory is the single-process variant, also used by tests.
func NewMemory() Locker {
	return &memoryLocker{running: make(map[int64]struct{})}
}

func (l *memoryLocker) TryAcquire(_ context.Context, integrationID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.running[integrationID]; busy {
		return false, nil
	}
	l.running[integrationID] = struct{}{}
	return true, nil
}

func (l *memoryLocker) Release(_ context.Context, integrationID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, integrationID)
	return nil
}

func (l *memoryLocker) Held(_ context.Context, integrationID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.running[integrationID]
	return busy, nil
}
