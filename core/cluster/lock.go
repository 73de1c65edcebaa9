package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lock keys live under their own prefix, distinct from the pub/sub
// channel namespace.
const lockKeyPrefix = "datakit:lock:"

const lockOpTimeout = 5 * time.Second

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

type localLock struct {
	token   string
	expires time.Time
}

// LockManager provides distributed mutual exclusion on top of the sync
// manager's Redis pool. Every acquisition mints a unique token; release
// and renew require both the local record and a remote token match, so
// a process can never release a lock that expired and was reacquired by
// another holder. All failures, including Redis being unavailable,
// return false rather than erroring into the caller's data path.
type LockManager struct {
	manager *Manager
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]localLock
}

// NewLockManager builds a lock manager sharing the sync manager's pool.
// While the sync manager is disabled every operation returns false.
func NewLockManager(m *Manager, log *zap.Logger) *LockManager {
	return &LockManager{
		manager: m,
		log:     log,
		locks:   make(map[string]localLock),
	}
}

// Acquire takes the lock for ttl, succeeding only if nobody holds it.
// The set-if-absent with TTL is a single atomic Redis command, so there
// is no check-then-set window.
func (lm *LockManager) Acquire(key string, ttl time.Duration) bool {
	client := lm.manager.redisClient()
	if client == nil {
		return false
	}

	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()

	ok, err := client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		lm.log.Warn("Lock acquire failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	lm.mu.Lock()
	lm.locks[key] = localLock{token: token, expires: time.Now().Add(ttl)}
	lm.mu.Unlock()
	return true
}

// Release drops the lock. Requires a local acquisition record and the
// remote value still matching our token; the compare-then-delete runs
// as one atomic script.
func (lm *LockManager) Release(key string) bool {
	lm.mu.Lock()
	rec, held := lm.locks[key]
	lm.mu.Unlock()
	if !held {
		return false
	}

	client := lm.manager.redisClient()
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()

	n, err := releaseScript.Run(ctx, client, []string{lockKeyPrefix + key}, rec.token).Int()
	if err != nil {
		lm.log.Warn("Lock release failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if n == 0 {
		// Expired and possibly reacquired elsewhere; our record is stale.
		lm.forget(key)
		return false
	}

	lm.forget(key)
	return true
}

// Renew extends the lock's TTL under the same ownership rules as
// Release.
func (lm *LockManager) Renew(key string, ttl time.Duration) bool {
	lm.mu.Lock()
	rec, held := lm.locks[key]
	lm.mu.Unlock()
	if !held {
		return false
	}

	client := lm.manager.redisClient()
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()

	n, err := renewScript.Run(ctx, client, []string{lockKeyPrefix + key}, rec.token, ttl.Milliseconds()).Int()
	if err != nil || n == 0 {
		if err != nil {
			lm.log.Warn("Lock renew failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	lm.mu.Lock()
	lm.locks[key] = localLock{token: rec.token, expires: time.Now().Add(ttl)}
	lm.mu.Unlock()
	return true
}

// IsLocked probes the coordination store directly, so it reflects locks
// held by any process, not just local bookkeeping.
func (lm *LockManager) IsLocked(key string) bool {
	client := lm.manager.redisClient()
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()

	n, err := client.Exists(ctx, lockKeyPrefix+key).Result()
	if err != nil {
		lm.log.Warn("Lock probe failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// CleanupExpired sweeps local records whose TTL has passed. The remote
// keys self-expire; this only keeps the bookkeeping map from growing.
func (lm *LockManager) CleanupExpired() int {
	now := time.Now()
	removed := 0

	lm.mu.Lock()
	for key, rec := range lm.locks {
		if now.After(rec.expires) {
			delete(lm.locks, key)
			removed++
		}
	}
	lm.mu.Unlock()

	return removed
}

func (lm *LockManager) forget(key string) {
	lm.mu.Lock()
	delete(lm.locks, key)
	lm.mu.Unlock()
}

// held reports whether a local acquisition record exists. Test hook.
func (lm *LockManager) held(key string) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	_, ok := lm.locks[key]
	return ok
}

// record installs a local acquisition record directly. Test hook for
// exercising the sweep without a live Redis.
func (lm *LockManager) record(key, token string, expires time.Time) {
	lm.mu.Lock()
	lm.locks[key] = localLock{token: token, expires: expires}
	lm.mu.Unlock()
}
