package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"registro/internal/core"
	"registro/internal/events"
	"registro/internal/kv"
	"registro/internal/kv/memory"
	"registro/internal/log"
)

type failingStore struct {
	kv.Store
	getErr error
	setErr error
}

func (f *failingStore) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

// hookStore runs afterGet once, right after the first Get it serves once
// armed.
type hookStore struct {
	kv.Store
	armed    atomic.Bool
	afterGet func()
}

func (h *hookStore) Get(ctx context.Context, key string) (string, error) {
	v, err := h.Store.Get(ctx, key)
	if h.armed.CompareAndSwap(true, false) {
		h.afterGet()
	}
	return v, err
}

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, events.NewBus(log.Discard()), log.Discard()), store
}

func rec(typ string, amount float64, y int, m time.Month, d int) core.Record {
	return core.Record{
		Type:        typ,
		Description: typ + " note",
		Date:        core.DateOf(y, m, d),
		Amount:      core.AmountFromFloat(amount),
	}
}

func countChanges(r *Registry, name core.Collection) *int {
	n := new(int)
	var mu sync.Mutex
	r.OnChanged(name, func(core.Collection) {
		mu.Lock()
		*n++
		mu.Unlock()
	})
	return n
}

func TestLoadInitializesMissingCollection(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)

	got := r.Load(ctx, core.Out)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	raw, err := store.Get(ctx, "registry_out")
	if err != nil || raw != "[]" {
		t.Fatalf("expected persisted [], got %q (%v)", raw, err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)

	if err := store.Set(ctx, "registry_in", `[{"type":"Salary","description":"","date":"not a date","amount":"abc"}]`); err != nil {
		t.Fatal(err)
	}
	malformed := r.Load(ctx, core.In)
	if len(malformed) != 1 || malformed[0].Amount.Valid() || malformed[0].Date.Valid() {
		t.Fatalf("malformed record not preserved: %+v", malformed)
	}

	want := append(malformed, rec("Salary", 1500.5, 2024, time.March, 1))
	if err := r.Save(ctx, core.In, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := r.Load(ctx, core.In)
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadResetsCorruptValue(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)
	_ = store.Set(ctx, "registry_out", `{"not":"a list"}`)

	if got := r.Load(ctx, core.Out); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	if raw, _ := store.Get(ctx, "registry_out"); raw != "[]" {
		t.Fatalf("expected reset to [], got %q", raw)
	}
}

func TestAddAppends(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	changes := countChanges(r, core.Out)

	for i := 1; i <= 3; i++ {
		x := rec("Food", float64(i), 2024, time.March, i)
		if !r.Add(ctx, core.Out, x) {
			t.Fatalf("Add %d failed", i)
		}
		got := r.Load(ctx, core.Out)
		if len(got) != i || !got[i-1].Equal(x) {
			t.Fatalf("after add %d: %+v", i, got)
		}
	}
	if *changes != 3 {
		t.Fatalf("expected 3 notifications, got %d", *changes)
	}
	if n := len(r.Load(ctx, core.In)); n != 0 {
		t.Fatalf("other collection touched: %d", n)
	}
}

func TestDeleteAt(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	a, b, c := rec("A", 1, 2024, 1, 1), rec("B", 2, 2024, 1, 2), rec("C", 3, 2024, 1, 3)
	_ = r.Save(ctx, core.Out, []core.Record{a, b, c})
	changes := countChanges(r, core.Out)

	tests := []struct {
		name  string
		index int
		ok    bool
	}{
		{"negative", -1, false},
		{"past end", 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.DeleteAt(ctx, core.Out, tt.index); got != tt.ok {
				t.Fatalf("DeleteAt(%d) = %v", tt.index, got)
			}
			if n := len(r.Load(ctx, core.Out)); n != 3 {
				t.Fatalf("collection changed: %d records", n)
			}
		})
	}
	if *changes != 0 {
		t.Fatalf("out of range delete notified %d times", *changes)
	}

	if !r.DeleteAt(ctx, core.Out, 1) {
		t.Fatal("DeleteAt(1) failed")
	}
	got := r.Load(ctx, core.Out)
	if len(got) != 2 || !got[0].Equal(a) || !got[1].Equal(c) {
		t.Fatalf("unexpected records after delete: %+v", got)
	}
	if *changes != 1 {
		t.Fatalf("expected 1 notification, got %d", *changes)
	}
}

func TestReplaceAt(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	a, b := rec("A", 1, 2024, 1, 1), rec("B", 2, 2024, 1, 2)
	_ = r.Save(ctx, core.In, []core.Record{a, b})

	x := rec("X", 9, 2024, 2, 1)
	if r.ReplaceAt(ctx, core.In, 2, x) {
		t.Fatal("ReplaceAt past end should fail")
	}
	if !r.ReplaceAt(ctx, core.In, 0, x) {
		t.Fatal("ReplaceAt(0) failed")
	}
	got := r.Load(ctx, core.In)
	if len(got) != 2 || !got[0].Equal(x) || !got[1].Equal(b) {
		t.Fatalf("unexpected records after replace: %+v", got)
	}
}

func TestFailingStoreDegrades(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	t.Run("read", func(t *testing.T) {
		store := &failingStore{Store: memory.New(), getErr: boom}
		r := New(store, nil, log.Discard())
		changes := countChanges(r, "")

		if got := r.Load(ctx, core.Out); len(got) != 0 {
			t.Fatalf("expected empty, got %v", got)
		}
		if r.Add(ctx, core.Out, rec("A", 1, 2024, 1, 1)) {
			t.Fatal("Add must fail when the collection cannot be read")
		}
		if !r.TotalAll(ctx, core.Out).IsZero() {
			t.Fatal("total over unreadable store must be zero")
		}
		if *changes != 0 {
			t.Fatalf("unexpected notifications: %d", *changes)
		}
	})

	t.Run("write", func(t *testing.T) {
		inner := memory.New()
		_ = inner.Set(ctx, "registry_out", "[]")
		store := &failingStore{Store: inner, setErr: boom}
		r := New(store, nil, log.Discard())
		changes := countChanges(r, core.Out)

		if r.Add(ctx, core.Out, rec("A", 1, 2024, 1, 1)) {
			t.Fatal("Add must report the failed save")
		}
		if err := r.Save(ctx, core.Out, nil); !errors.Is(err, boom) {
			t.Fatalf("Save error = %v, want %v", err, boom)
		}
		if *changes != 0 {
			t.Fatalf("failed save notified %d times", *changes)
		}
	})
}

func TestConcurrentAddsLoseNothing(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add(ctx, core.Out, rec("Food", 1, 2024, 5, 1+i%28))
			r.Add(ctx, core.In, rec("Salary", 2, 2024, 5, 1+i%28))
		}(i)
	}
	wg.Wait()

	if got := len(r.Load(ctx, core.Out)); got != n {
		t.Fatalf("out: expected %d records, got %d", n, got)
	}
	if got := r.TotalAll(ctx, core.In); !got.Equal(decimal.NewFromInt(2 * n)) {
		t.Fatalf("in: expected total %d, got %s", 2*n, got)
	}
}

func TestOnChangedFiltersAndUnsubscribes(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	var seen []core.Collection
	unsubscribe := r.OnChanged(core.In, func(c core.Collection) { seen = append(seen, c) })
	all := 0
	r.OnChanged("", func(core.Collection) { all++ })

	r.Add(ctx, core.Out, rec("A", 1, 2024, 1, 1))
	r.Add(ctx, core.In, rec("B", 1, 2024, 1, 1))
	unsubscribe()
	r.Add(ctx, core.In, rec("C", 1, 2024, 1, 1))

	if len(seen) != 1 || seen[0] != core.In {
		t.Fatalf("filtered subscriber saw %v", seen)
	}
	if all != 3 {
		t.Fatalf("catch-all subscriber saw %d changes", all)
	}
}

func TestLoadKeepsRecordAddedWhileInitializing(t *testing.T) {
	tests := []struct {
		name    string
		initial string
	}{
		{"missing", ""},
		{"corrupt", `{"not":"a list"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			inner := memory.New()
			if tt.initial != "" {
				_ = inner.Set(ctx, "registry_out", tt.initial)
			}
			store := &hookStore{Store: inner}
			r := New(store, nil, log.Discard())
			x := rec("Food", 10, 2024, 3, 1)
			store.afterGet = func() {
				if !r.Add(ctx, core.Out, x) {
					t.Error("Add failed")
				}
			}
			store.armed.Store(true)

			if got := r.Load(ctx, core.Out); len(got) != 1 || !got[0].Equal(x) {
				t.Fatalf("Load = %+v, want the added record", got)
			}
			if got := r.Load(ctx, core.Out); len(got) != 1 {
				t.Fatalf("stored collection lost the added record: %+v", got)
			}
		})
	}
}

func TestConcurrentReadsDuringFirstAccess(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Load(ctx, core.Out)
			r.TotalAll(ctx, core.Out)
		}()
		go func(i int) {
			defer wg.Done()
			r.Add(ctx, core.Out, rec("Food", 1, 2024, 5, 1+i%28))
		}(i)
	}
	wg.Wait()

	if got := len(r.Load(ctx, core.Out)); got != n {
		t.Fatalf("expected %d records, got %d", n, got)
	}
}

func TestClearWaitsForInFlightMutation(t *testing.T) {
	ctx := context.Background()
	store := &hookStore{Store: memory.New()}
	r := New(store, nil, log.Discard())
	_ = r.Save(ctx, core.Out, []core.Record{rec("A", 1, 2024, 1, 1), rec("B", 2, 2024, 1, 2)})
	changes := countChanges(r, "")

	entered := make(chan struct{})
	release := make(chan struct{})
	store.afterGet = func() {
		close(entered)
		<-release
	}
	store.armed.Store(true)

	added := make(chan bool, 1)
	go func() { added <- r.Add(ctx, core.Out, rec("C", 3, 2024, 1, 3)) }()
	<-entered

	cleared := make(chan error, 1)
	go func() { cleared <- r.Clear(ctx) }()
	select {
	case err := <-cleared:
		t.Fatalf("Clear returned %v while a mutation held the collection", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if !<-added {
		t.Fatal("Add failed")
	}
	if err := <-cleared; err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := r.Load(ctx, core.Out); len(got) != 0 {
		t.Fatalf("records survived the clear: %+v", got)
	}
	if *changes != 3 {
		t.Fatalf("expected 3 notifications (add, in, out), got %d", *changes)
	}
}
