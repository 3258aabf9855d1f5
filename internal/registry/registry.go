// Package registry persists the in/out transaction collections and exposes
// the mutation and aggregation operations over them.
//
// Every operation is total: storage and decoding problems are logged and
// degrade to an empty collection instead of surfacing to the caller.
// Mutations on the same collection are serialized; after a successful save
// the change is announced on the events bus.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"registro/internal/core"
	"registro/internal/events"
	"registro/internal/kv"
	"registro/internal/log"
)

// collections are locked in this order by Clear.
var collections = []core.Collection{core.In, core.Out}

// Registry is safe for concurrent use.
type Registry struct {
	store  kv.Store
	bus    *events.Bus
	logger *log.Logger

	mu    sync.Mutex
	locks map[core.Collection]*sync.Mutex
}

// New builds a registry over store. A nil bus gets a private one and a nil
// logger falls back to the default slog logger.
func New(store kv.Store, bus *events.Bus, logger *log.Logger) *Registry {
	if bus == nil {
		bus = events.NewBus(logger)
	}
	if logger == nil {
		logger = log.Default(log.ComponentRegistry)
	}
	return &Registry{
		store:  store,
		bus:    bus,
		logger: logger.WithComponent(log.ComponentRegistry),
		locks:  map[core.Collection]*sync.Mutex{},
	}
}

// Bus returns the bus change signals are published on.
func (r *Registry) Bus() *events.Bus {
	return r.bus
}

func (r *Registry) lock(name core.Collection) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}

// Load returns the records of a collection in stored order. A collection
// that was never written is initialized to an empty list.
func (r *Registry) Load(ctx context.Context, name core.Collection) []core.Record {
	records, err := r.read(ctx, name)
	if errors.Is(err, errMissing) || errors.Is(err, errCorrupt) {
		l := r.lock(name)
		l.Lock()
		records, err = r.load(ctx, name)
		l.Unlock()
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to read collection",
			log.FieldOperation, log.OpLoad,
			log.FieldCollection, name,
			log.FieldError, err)
		return []core.Record{}
	}
	return records
}

var (
	errMissing = errors.New("collection not initialized")
	errCorrupt = errors.New("collection is not a JSON array")
)

// read decodes the stored collection and never writes.
func (r *Registry) read(ctx context.Context, name core.Collection) ([]core.Record, error) {
	raw, err := r.store.Get(ctx, name.Key())
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return nil, errMissing
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	records, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	return records, nil
}

// load must be called with the collection lock held. It only fails when the
// store cannot be read; missing or undecodable values are reset to an empty
// list.
func (r *Registry) load(ctx context.Context, name core.Collection) ([]core.Record, error) {
	records, err := r.read(ctx, name)
	switch {
	case errors.Is(err, errMissing):
		r.materialize(ctx, name)
		return []core.Record{}, nil
	case errors.Is(err, errCorrupt):
		r.logger.WarnContext(ctx, "Stored collection is not a JSON array, resetting",
			log.FieldOperation, log.OpLoad,
			log.FieldCollection, name,
			log.FieldError, err)
		r.materialize(ctx, name)
		return []core.Record{}, nil
	case err != nil:
		return nil, err
	}
	return records, nil
}

func (r *Registry) materialize(ctx context.Context, name core.Collection) {
	if err := r.store.Set(ctx, name.Key(), "[]"); err != nil {
		r.logger.WarnContext(ctx, "Failed to initialize collection",
			log.FieldCollection, name,
			log.FieldError, err)
	}
}

func decode(raw string) ([]core.Record, error) {
	var records []core.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}

// Save replaces the whole collection with records.
func (r *Registry) Save(ctx context.Context, name core.Collection, records []core.Record) error {
	l := r.lock(name)
	l.Lock()
	defer l.Unlock()
	return r.save(ctx, name, records)
}

func (r *Registry) save(ctx context.Context, name core.Collection, records []core.Record) error {
	if records == nil {
		records = []core.Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := r.store.Set(ctx, name.Key(), string(b)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// mutate runs fn on the current records under the collection lock and saves
// the result when fn reports a change. Subscribers are notified after the
// lock is released and only when the save succeeded. A collection that
// cannot be read is never overwritten.
func (r *Registry) mutate(ctx context.Context, name core.Collection, op string, index int, fn func([]core.Record) ([]core.Record, bool)) bool {
	fields := func() log.LogFields {
		return log.NewFields().WithOperation(op).WithCollection(name.String(), index)
	}

	l := r.lock(name)
	l.Lock()
	records, err := r.load(ctx, name)
	if err != nil {
		l.Unlock()
		r.logger.ErrorContext(ctx, "Failed to read collection", fields().WithError(err).ToSlice()...)
		return false
	}
	records, changed := fn(records)
	if !changed {
		l.Unlock()
		r.logger.WarnContext(ctx, "Index out of range", fields().WithLength(len(records)).ToSlice()...)
		return false
	}
	err = r.save(ctx, name, records)
	l.Unlock()

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save collection", fields().WithError(err).ToSlice()...)
		return false
	}
	r.logger.DebugContext(ctx, "Collection updated", fields().WithLength(len(records)).ToSlice()...)
	r.bus.Publish(events.Changed{Collection: name.String()})
	return true
}

// Add appends rec to the end of the collection.
func (r *Registry) Add(ctx context.Context, name core.Collection, rec core.Record) bool {
	return r.mutate(ctx, name, log.OpAppend, -1, func(records []core.Record) ([]core.Record, bool) {
		return append(records, rec), true
	})
}

// DeleteAt removes the record at index. An index outside the collection
// leaves it untouched and returns false.
func (r *Registry) DeleteAt(ctx context.Context, name core.Collection, index int) bool {
	return r.mutate(ctx, name, log.OpDelete, index, func(records []core.Record) ([]core.Record, bool) {
		if index < 0 || index >= len(records) {
			return records, false
		}
		return append(records[:index], records[index+1:]...), true
	})
}

// ReplaceAt overwrites the record at index with rec.
func (r *Registry) ReplaceAt(ctx context.Context, name core.Collection, index int, rec core.Record) bool {
	return r.mutate(ctx, name, log.OpReplace, index, func(records []core.Record) ([]core.Record, bool) {
		if index < 0 || index >= len(records) {
			return records, false
		}
		records[index] = rec
		return records, true
	})
}

// Clear wipes the whole store while holding every collection lock, so no
// mutation can straddle it, then announces both collections as changed.
func (r *Registry) Clear(ctx context.Context) error {
	locks := make([]*sync.Mutex, 0, len(collections))
	for _, name := range collections {
		l := r.lock(name)
		l.Lock()
		locks = append(locks, l)
	}
	err := r.store.Clear(ctx)
	for _, l := range locks {
		l.Unlock()
	}
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for _, name := range collections {
		r.bus.Publish(events.Changed{Collection: name.String()})
	}
	return nil
}

// OnChanged subscribes fn to successful mutations of name, or of every
// collection when name is empty.
func (r *Registry) OnChanged(name core.Collection, fn func(core.Collection)) (unsubscribe func()) {
	return r.bus.Subscribe(name.String(), func(ev events.Changed) {
		fn(core.Collection(ev.Collection))
	})
}
