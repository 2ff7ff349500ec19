package handlers

import (
	"sync"
	"time"

	cache "github.com/mozilla-services/sizedlrucache"
)

// lockedCache is a size bounded, expiring LRU safe for concurrent use.
type lockedCache[V any] struct {
	lru           *cache.SizedLRU
	cacheDuration time.Duration
	lck           sync.Mutex
}

func newLockedCache[V any](maxSize int64, dur time.Duration) *lockedCache[V] {
	return &lockedCache[V]{
		lru:           cache.NewSizedLRU(maxSize),
		cacheDuration: dur,
	}
}

func (l *lockedCache[V]) Add(key string, val V, size int64) {
	l.lck.Lock()
	defer l.lck.Unlock()
	l.lru.Add(key, val, size, time.Now().Add(l.cacheDuration))
}

func (l *lockedCache[V]) Get(key string) (V, bool) {
	l.lck.Lock()
	defer l.lck.Unlock()
	var zero V
	val, ok := l.lru.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := val.(V)
	return v, ok
}

// exe is a fetched or appended executable.
type exe struct {
	body        []byte
	contentType string
	filename    string
}

func (e *exe) copy() *exe {
	b := make([]byte, len(e.body))
	copy(b, e.body)
	return &exe{
		body:        b,
		contentType: e.contentType,
		filename:    e.filename,
	}
}

func (e *exe) size() int64 {
	return int64(len(e.body) + len(e.contentType) + len(e.filename))
}

// exeCache holds unmodified source executables keyed by source URL.
type exeCache struct {
	cache *lockedCache[*exe]
}

func newExeCache(maxSize int64, dur time.Duration) *exeCache {
	return &exeCache{
		cache: newLockedCache[*exe](maxSize, dur),
	}
}

// Add stores a copy of e
func (c *exeCache) Add(key string, e *exe) {
	c.cache.Add(key, e.copy(), e.size())
}

// Get returns a copy, if it exists so the cached bytes are never modified
func (c *exeCache) Get(key string) *exe {
	if e, hit := c.cache.Get(key); hit {
		return e.copy()
	}
	return nil
}

// locationCache remembers where executables already in storage live.
type locationCache struct {
	cache *lockedCache[string]
}

func newLocationCache(maxSize int64, dur time.Duration) *locationCache {
	return &locationCache{
		cache: newLockedCache[string](maxSize, dur),
	}
}

func (s *locationCache) Add(key string, location string) {
	s.cache.Add(key, location, int64(len(key)+len(location)))
}

// Get returns "" on a miss
func (s *locationCache) Get(key string) string {
	location, _ := s.cache.Get(key)
	return location
}
