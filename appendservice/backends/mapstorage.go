package backends

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type MapStorageItem struct {
	ContentType string
	Bytes       []byte
}

// MapStorage is for testing purposes
type MapStorage struct {
	mu      sync.Mutex
	Storage map[string]MapStorageItem
	puts    int
}

func NewMapStorage() *MapStorage {
	return &MapStorage{
		Storage: make(map[string]MapStorageItem),
	}
}

func (m *MapStorage) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Storage[key]
	return ok
}

func (m *MapStorage) Put(ctx context.Context, key string, contentType string, body io.ReadSeeker) error {
	bytes, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("error reading body: %s", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Storage[key] = MapStorageItem{contentType, bytes}
	m.puts++
	return nil
}

// Get returns the item stored under key.
func (m *MapStorage) Get(key string) (MapStorageItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.Storage[key]
	return item, ok
}

// Puts returns how many times Put has been called.
func (m *MapStorage) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
