// Package activesession tracks which workout session each user is currently
// logging sets against. Writers use compare-and-swap so that concurrent
// starts cannot silently overwrite each other's pointer.
package activesession

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Store maps a user to the id of their active session.
type Store interface {
	// Get returns the active session id, if any.
	Get(ctx context.Context, userID int64) (uuid.UUID, bool, error)
	// Claim sets the pointer only when the user has none.
	Claim(ctx context.Context, userID int64, sessionID uuid.UUID) (bool, error)
	// Replace swaps old for next only while the pointer still holds old.
	Replace(ctx context.Context, userID int64, old, next uuid.UUID) (bool, error)
	// Release clears the pointer only while it still holds sessionID.
	Release(ctx context.Context, userID int64, sessionID uuid.UUID) (bool, error)
}

const keyPrefix = "fittrack:active_session:"

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

var replaceScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps pointers in Redis with a TTL so that abandoned sessions
// eventually stop blocking new ones.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (uuid.UUID, bool, error) {
	val, err := s.rdb.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("reading active session: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("parsing active session %q: %w", val, err)
	}
	return id, true, nil
}

func (s *RedisStore) Claim(ctx context.Context, userID int64, sessionID uuid.UUID) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key(userID), sessionID.String(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming active session: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Replace(ctx context.Context, userID int64, old, next uuid.UUID) (bool, error) {
	n, err := replaceScript.Run(ctx, s.rdb, []string{key(userID)},
		old.String(), next.String(), s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("replacing active session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, userID int64, sessionID uuid.UUID) (bool, error) {
	n, err := releaseScript.Run(ctx, s.rdb, []string{key(userID)}, sessionID.String()).Int()
	if err != nil {
		return false, fmt.Errorf("releasing active session: %w", err)
	}
	return n == 1, nil
}

// MemoryStore is the in-process Store used without Redis.
type MemoryStore struct {
	mu       sync.Mutex
	pointers map[int64]entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	id      uuid.UUID
	expires time.Time
}

// NewMemoryStore returns a store whose pointers expire after ttl. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{pointers: map[int64]entry{}, ttl: ttl, now: time.Now}
}

// current returns the live pointer; callers hold mu.
func (s *MemoryStore) current(userID int64) (uuid.UUID, bool) {
	e, ok := s.pointers[userID]
	if !ok {
		return uuid.Nil, false
	}
	if s.ttl > 0 && !s.now().Before(e.expires) {
		delete(s.pointers, userID)
		return uuid.Nil, false
	}
	return e.id, true
}

func (s *MemoryStore) set(userID int64, id uuid.UUID) {
	s.pointers[userID] = entry{id: id, expires: s.now().Add(s.ttl)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.current(userID)
	return id, ok, nil
}

func (s *MemoryStore) Claim(_ context.Context, userID int64, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current(userID); ok {
		return false, nil
	}
	s.set(userID, sessionID)
	return true, nil
}

func (s *MemoryStore) Replace(_ context.Context, userID int64, old, next uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.current(userID); !ok || id != old {
		return false, nil
	}
	s.set(userID, next)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, userID int64, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.current(userID); !ok || id != sessionID {
		return false, nil
	}
	delete(s.pointers, userID)
	return true, nil
}
