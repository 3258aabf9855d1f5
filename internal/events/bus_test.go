package events

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"registro/internal/log"
)

func TestBusFiltersByCollection(t *testing.T) {
	b := NewBus(log.Discard())
	var inCalls, allCalls int
	b.Subscribe("in", func(Changed) { inCalls++ })
	b.Subscribe("", func(Changed) { allCalls++ })

	b.Publish(Changed{Collection: "in"})
	b.Publish(Changed{Collection: "out"})

	if inCalls != 1 {
		t.Fatalf("in subscriber called %d times, want 1", inCalls)
	}
	if allCalls != 2 {
		t.Fatalf("wildcard subscriber called %d times, want 2", allCalls)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus(log.Discard())
	calls := 0
	unsub := b.Subscribe("out", func(Changed) { calls++ })
	b.Publish(Changed{Collection: "out"})
	unsub()
	unsub() // second call is a no-op
	b.Publish(Changed{Collection: "out"})

	if calls != 1 {
		t.Fatalf("called %d times, want 1", calls)
	}
	if b.Len() != 0 {
		t.Fatalf("expected no subscriptions, got %d", b.Len())
	}
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	var buf bytes.Buffer
	b := NewBus(log.New(log.Config{Handler: slog.NewTextHandler(&buf, nil)}))
	reached := false
	b.Subscribe("", func(Changed) { panic("boom") })
	b.Subscribe("", func(Changed) { reached = true })

	b.Publish(Changed{Collection: "in"})
	if !reached {
		t.Fatalf("second subscriber not called after panic")
	}
	out := buf.String()
	for _, want := range []string{"Change subscriber panicked", "component=events", "collection=in", "panic=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestBusSubscribeDuringPublish(t *testing.T) {
	b := NewBus(log.Discard())
	var late int
	b.Subscribe("", func(Changed) {
		// Subscribing from inside a handler must not deadlock.
		b.Subscribe("", func(Changed) { late++ })
	})
	b.Publish(Changed{Collection: "in"})
	if late != 0 {
		t.Fatalf("late subscriber should only see later signals")
	}
	b.Publish(Changed{Collection: "in"})
	if late != 1 {
		t.Fatalf("late subscriber called %d times, want 1", late)
	}
}
