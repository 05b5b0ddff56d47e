package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/aisgo/vlog-gateway/cache/redis"
)

// Store 验证码存储。Take 读取即删除，过期条目视为不存在。
type Store interface {
	Put(ctx context.Context, id, code string, ttl time.Duration) error
	Take(ctx context.Context, id string) (code string, ok bool, err error)
}

/* ========================================================================
 * MemoryStore - 单实例内存存储
 * ======================================================================== */

type memoryEntry struct {
	code    string
	expires time.Time
}

// MemoryStore 进程内存储，读取时惰性过期，Sweep 清理残留条目
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore now 为 nil 时使用 time.Now
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, id, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{code: code, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, id)
	if !s.now().Before(e.expires) {
		return "", false, nil
	}
	return e.code, true, nil
}

// Sweep 删除已过期条目，返回删除数量
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len 当前条目数（含未清理的过期条目）
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

/* ========================================================================
 * RedisStore - 多实例共享存储
 * ======================================================================== */

const keyPrefix = "challenge:"

// RedisStore 基于 SET EX + GETDEL，过期交给 Redis
type RedisStore struct {
	client redis.Clienter
}

func NewRedisStore(client redis.Clienter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, id, code string, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+id, code, ttl)
}

func (s *RedisStore) Take(ctx context.Context, id string) (string, bool, error) {
	code, err := s.client.GetDel(ctx, keyPrefix+id)
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}
