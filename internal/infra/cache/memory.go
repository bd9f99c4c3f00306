package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"social-tracker/internal/domain"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory хранит кэш в памяти процесса. Используется без REDIS_ADDR и в тестах.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

var _ domain.Cache = (*Memory)(nil)

// NewMemory создаёт пустой кэш.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) getLocked(key string) ([]byte, bool) {
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return nil, false
	}
	return e.value, true
}

// Get возвращает значение или domain.ErrCacheMiss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.getLocked(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set задаёт значение; ttl <= 0 означает без истечения.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

// Del удаляет ключи.
func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Incr увеличивает целочисленный счётчик.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if v, ok := m.getLocked(key); ok {
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	e := m.items[key]
	e.value = []byte(strconv.FormatInt(n, 10))
	m.items[key] = e
	return n, nil
}

// Once выполняет функцию, если ключ ещё не задан.
func (m *Memory) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	m.mu.Lock()
	if _, ok := m.getLocked(key); ok {
		m.mu.Unlock()
		return nil
	}
	e := memoryEntry{value: []byte("1")}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	m.mu.Unlock()
	if err := fn(); err != nil {
		_ = m.Del(ctx, key)
		return err
	}
	return nil
}
