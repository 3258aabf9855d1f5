// Package cache memoizes computed views of the ledger. Entries expire after a
// TTL and are dropped as soon as the collection they were built from changes.
package cache

import (
	"strings"
	"sync"
	"time"

	"registro/internal/events"
	"registro/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix removes every key starting with prefix and reports how many
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Key builds the cache key of a view over collection.
func Key(collection string, parts ...string) string {
	return collection + ":" + strings.Join(parts, ":")
}

// View caches values derived from a collection. Each change to a collection
// bumps its generation and drops its entries; a value computed against an
// older generation is never stored.
type View[T any] struct {
	cache Cache[T]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewView[T any](c Cache[T]) *View[T] {
	return &View[T]{cache: c, gens: map[string]uint64{}}
}

// Get looks key up in the underlying cache.
func (v *View[T]) Get(key string) (T, bool) {
	return v.cache.Get(key)
}

// Generation returns the change count of collection. Read it before loading
// the data a value is computed from.
func (v *View[T]) Generation(collection string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gens[collection]
}

// Store caches data under key unless collection changed since gen was read.
func (v *View[T]) Store(collection string, gen uint64, key string, data T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gens[collection] != gen {
		return false
	}
	v.cache.Set(key, data)
	return true
}

// Invalidate bumps the generation of collection and drops its entries.
func (v *View[T]) Invalidate(collection string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gens[collection]++
	return v.cache.DeletePrefix(collection + ":")
}

// InvalidateOn invalidates a collection whenever the bus reports a change
// to it.
func (v *View[T]) InvalidateOn(bus *events.Bus) (unsubscribe func()) {
	return bus.Subscribe("", func(ev events.Changed) {
		v.Invalidate(ev.Collection)
	})
}

// Manager runs periodic cleanup of registered caches
type Manager struct {
	logger *log.Logger

	mu       sync.Mutex
	caches   []Cleaner
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default(log.ComponentCache)
	}
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

// CleanNow runs one cleanup pass and returns the number of evicted entries.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-m.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine started by StartCleanup and waits for it.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
}
