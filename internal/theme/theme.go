// Package theme holds the background gradient presets and the current
// selection, persisted in the key-value store.
package theme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"registro/internal/kv"
	"registro/internal/log"
)

// StorageKey holds the JSON array of the selected gradient colors.
const StorageKey = "gradientColors"

// Preset is a named three-stop gradient.
type Preset struct {
	Name   string   `json:"name"`
	Colors []string `json:"colors"`
}

// Presets lists the gradients in display order; index 0 is the default.
var Presets = []Preset{
	{Name: "Default", Colors: []string{"#d7d8b6ff", "#f2edadff", "#ffffffff"}},
	{Name: "Ocean", Colors: []string{"#667eea", "#764ba2", "#f093fb"}},
	{Name: "Sunset", Colors: []string{"#fa709a", "#fee140", "#ffecd2"}},
	{Name: "Forest", Colors: []string{"#134e5e", "#71b280", "#d4fc79"}},
	{Name: "Purple", Colors: []string{"#a8edea", "#fed6e3", "#ffecd2"}},
	{Name: "Fire", Colors: []string{"#ff6b6b", "#feca57", "#ff9ff3"}},
}

// ByIndex returns the preset at i, or Default when i is out of range.
func ByIndex(i int) Preset {
	if i < 0 || i >= len(Presets) {
		return Presets[0]
	}
	return Presets[i]
}

// ByName looks a preset up case-insensitively, falling back to Default.
func ByName(name string) (Preset, int) {
	for i, p := range Presets {
		if strings.EqualFold(p.Name, name) {
			return p, i
		}
	}
	return Presets[0], 0
}

// indexOfColor returns the preset whose first stop is color, or 0.
func indexOfColor(color string) int {
	for i, p := range Presets {
		if strings.EqualFold(p.Colors[0], color) {
			return i
		}
	}
	return 0
}

type subscriber struct {
	id uint64
	fn func([]string)
}

// State is the current gradient. Observers are called with the new colors
// after every change.
type State struct {
	store  kv.Store
	logger *log.Logger

	mu     sync.Mutex
	index  int
	nextID uint64
	subs   []subscriber
}

// NewState restores the saved selection from store. Unknown or unreadable
// values select Default.
func NewState(ctx context.Context, store kv.Store, logger *log.Logger) *State {
	if logger == nil {
		logger = log.Default(log.ComponentTheme)
	}
	s := &State{store: store, logger: logger.WithComponent(log.ComponentTheme)}

	raw, err := store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return s
	case err != nil:
		s.logger.WarnContext(ctx, "Failed to read theme", log.FieldError, err)
		return s
	}
	var colors []string
	if err := json.Unmarshal([]byte(raw), &colors); err != nil || len(colors) == 0 {
		s.logger.WarnContext(ctx, "Stored theme is not a color list", log.FieldKey, StorageKey)
		return s
	}
	s.index = indexOfColor(colors[0])
	return s
}

// Current returns the selected preset and its index.
func (s *State) Current() (Preset, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Presets[s.index], s.index
}

// Colors returns a copy of the selected gradient.
func (s *State) Colors() []string {
	p, _ := s.Current()
	return slices.Clone(p.Colors)
}

// SetByIndex selects the preset at i; out of range selects Default.
func (s *State) SetByIndex(ctx context.Context, i int) error {
	if i < 0 || i >= len(Presets) {
		i = 0
	}
	return s.set(ctx, i)
}

// SetByName selects a preset by name; unknown names select Default.
func (s *State) SetByName(ctx context.Context, name string) error {
	_, i := ByName(name)
	return s.set(ctx, i)
}

// SetByColor selects the preset whose first color matches.
func (s *State) SetByColor(ctx context.Context, color string) error {
	return s.set(ctx, indexOfColor(color))
}

func (s *State) set(ctx context.Context, i int) error {
	colors := slices.Clone(Presets[i].Colors)
	b, err := json.Marshal(colors)
	if err != nil {
		return fmt.Errorf("encode theme: %w", err)
	}

	s.mu.Lock()
	if err := s.store.Set(ctx, StorageKey, string(b)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save theme: %w", err)
	}
	s.index = i
	subs := make([]func([]string), len(s.subs))
	for j, sub := range s.subs {
		subs[j] = sub.fn
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Theme changed", "theme", Presets[i].Name)
	for _, fn := range subs {
		fn(slices.Clone(colors))
	}
	return nil
}

// Subscribe registers fn for theme changes and returns its removal function.
func (s *State) Subscribe(fn func([]string)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}
