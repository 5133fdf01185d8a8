package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by AcquireLock when another owner already holds it.
var ErrLockHeld = errors.New("lock already held")

// Store is the five-primitive cache backend contract: any implementation
// (networked KV store, in-memory map) that offers these is acceptable.
// Values are opaque byte strings.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, ownerID string) error
}

// RedisStore backs the cache with a networked KV store, the production
// path for a multi-process deployment. Locking uses SETNX; release is a
// compare-and-delete via a small Lua script so an owner can never release
// a lock it doesn't hold (e.g. after its own TTL already expired and
// another leader acquired it).
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey(key), ownerID, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

func (s *RedisStore) ReleaseLock(ctx context.Context, key, ownerID string) error {
	return releaseScript.Run(ctx, s.client, []string{lockKey(key)}, ownerID).Err()
}

func lockKey(key string) string { return "canonic:lock:" + key }

// InProcessStore is the degraded-mode / single-process fallback: a guarded
// map standing in for the networked backend. Semantics match RedisStore's
// contract exactly (single-process deployment).
type InProcessStore struct {
	mu      sync.Mutex
	values  map[string]entry
	locks   map[string]lockEntry
}

type entry struct {
	value   []byte
	expires time.Time
}

type lockEntry struct {
	owner   string
	expires time.Time
}

func NewInProcessStore() *InProcessStore {
	return &InProcessStore{values: make(map[string]entry), locks: make(map[string]lockEntry)}
}

func (s *InProcessStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *InProcessStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = entry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (s *InProcessStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *InProcessStore) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, held := s.locks[key]
	if held && time.Now().Before(l.expires) {
		return false, nil
	}
	s.locks[key] = lockEntry{owner: ownerID, expires: time.Now().Add(ttl)}
	return true, nil
}

func (s *InProcessStore) ReleaseLock(ctx context.Context, key, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok && l.owner == ownerID {
		delete(s.locks, key)
	}
	return nil
}
