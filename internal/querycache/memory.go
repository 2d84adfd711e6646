package querycache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
)

// Memory is an in-process Cache used for cache-less deployments and tests.
// Payloads go through the same msgpack codec as the Redis implementation so
// both return identical decoded values.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem

	now func() time.Time
}

type memoryItem struct {
	payload   []byte
	expiresAt time.Time
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string, v interface{}) bool {
	m.mu.Lock()
	item, ok := m.items[key]
	if ok && m.now().After(item.expiresAt) {
		delete(m.items, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := msgpack.Unmarshal(item.payload, v); err != nil {
		logx.WithContext(ctx).Errorf("querycache: decode %s: %v", key, err)
		return false
	}
	return true
}

func (m *Memory) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	payload, err := msgpack.Marshal(v)
	if err != nil {
		logx.WithContext(ctx).Errorf("querycache: encode %s: %v", key, err)
		return
	}
	m.mu.Lock()
	m.items[key] = memoryItem{payload: payload, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) InvalidatePattern(ctx context.Context, pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		matched, err := path.Match(pattern, key)
		if err != nil {
			logx.WithContext(ctx).Errorf("querycache: pattern %s: %v", pattern, err)
			return
		}
		if matched {
			delete(m.items, key)
		}
	}
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
