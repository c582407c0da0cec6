package watcher

import (
	"context"
	"sync"

	"github.com/avaldria/reportwatch/pkg/redis"
)

const changeLogKey = "watcher:seen"

// RedisChangeLog stores announced version keys in a Redis set. Shared by all
// watcher replicas; safe to lose (re-delivery is absorbed downstream).
type RedisChangeLog struct {
	client *redis.Client
}

// NewRedisChangeLog creates a change log backed by the given Redis client.
func NewRedisChangeLog(client *redis.Client) *RedisChangeLog {
	return &RedisChangeLog{client: client}
}

func (l *RedisChangeLog) Seen(ctx context.Context, versionKey string) (bool, error) {
	return l.client.SIsMember(ctx, changeLogKey, versionKey)
}

func (l *RedisChangeLog) Mark(ctx context.Context, versionKeys ...string) error {
	if len(versionKeys) == 0 {
		return nil
	}
	return l.client.SAdd(ctx, changeLogKey, versionKeys...)
}

// MemoryChangeLog is an in-process change log for single-binary deployments
// and tests.
type MemoryChangeLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryChangeLog creates an empty in-memory change log.
func NewMemoryChangeLog() *MemoryChangeLog {
	return &MemoryChangeLog{seen: make(map[string]struct{})}
}

func (l *MemoryChangeLog) Seen(ctx context.Context, versionKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[versionKey]
	return ok, nil
}

func (l *MemoryChangeLog) Mark(ctx context.Context, versionKeys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range versionKeys {
		l.seen[k] = struct{}{}
	}
	return nil
}
