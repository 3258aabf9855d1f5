// Package events is the in-process publish/subscribe channel used to tell
// observers that a collection changed. Signals carry no data: observers are
// expected to re-read whatever they display.
package events

import (
	"sync"

	"registro/internal/log"
)

// Changed names the collection that was modified.
type Changed struct {
	Collection string
}

// Handler receives change signals.
type Handler func(Changed)

type subscription struct {
	id         uint64
	collection string
	fn         Handler
}

// Bus fans out change signals to subscribers. The zero value is not usable;
// call NewBus.
type Bus struct {
	logger *log.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus builds a bus that reports panicking subscribers to logger, or to
// the default logger when it is nil.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default(log.ComponentEvents)
	}
	return &Bus{logger: logger.WithComponent(log.ComponentEvents)}
}

// Subscribe registers fn for changes to collection, or for every collection
// when collection is empty. The returned function removes the subscription
// and is safe to call more than once.
func (b *Bus) Subscribe(collection string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, collection: collection, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish calls every matching subscriber synchronously, in subscription
// order. A panicking subscriber is logged and does not stop the others.
func (b *Bus) Publish(ev Changed) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.collection == "" || s.collection == ev.Collection {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		b.deliver(fn, ev)
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) deliver(fn Handler, ev Changed) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Change subscriber panicked",
				log.FieldCollection, ev.Collection,
				log.FieldPanic, r)
		}
	}()
	fn(ev)
}
