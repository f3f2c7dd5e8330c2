package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memItem struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Every call holds the lock for its whole
// read-modify-write so partial updates and conditional writes are atomic.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock lets tests control expiry.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		items: make(map[string]memItem),
		now:   now,
	}
}

func (m *Memory) live(key string) (memItem, bool) {
	it, ok := m.items[key]
	if !ok || !m.now().Before(it.expiresAt) {
		return memItem{}, false
	}
	return it, true
}

func (m *Memory) Get(ctx context.Context, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	it, ok := m.live(key)
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeDocument(it.data)
}

func (m *Memory) Put(ctx context.Context, key string, doc Document, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{data: data, expiresAt: expiresAt}
	return nil
}

func (m *Memory) PutIfAbsent(ctx context.Context, key string, doc Document, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return ErrAlreadyExists
	}
	m.items[key] = memItem{data: data, expiresAt: expiresAt}
	return nil
}

func (m *Memory) UpdatePartial(ctx context.Context, key string, patch Patch, conds ...Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.live(key)
	if !ok {
		return ErrNotFound
	}
	doc, err := decodeDocument(it.data)
	if err != nil {
		return err
	}
	if err := applyPatch(doc, patch, conds); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	it.data = data
	m.items[key] = it
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Sweep(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key := range m.items {
		if _, ok := m.live(key); !ok {
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}
