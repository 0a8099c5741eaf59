// Package formstate is the in-process form tree the derived-field engine
// reads from and writes to.
//
// The store is the single owner of every cell value. It tracks, per path,
// whether the last meaningful edit came from the user (dirty) and notifies
// subscribers synchronously whenever a value actually changes.
package formstate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"property_appraisal/pkg/core/fieldpath"
)

// =============================================================================
// ENTRY (Cell Value with Provenance)
// =============================================================================

// Origin tells the store who performed a write.
type Origin int

const (
	// OriginUser marks the cell dirty: the user typed this value.
	OriginUser Origin = iota
	// OriginProgram leaves the dirty flag untouched.
	OriginProgram
)

func (o Origin) String() string {
	if o == OriginUser {
		return "USER"
	}
	return "SYSTEM"
}

// Entry is one cell of the tree.
type Entry struct {
	Value     any       `json:"value"`
	Dirty     bool      `json:"dirty"`
	UpdatedBy string    `json:"updated_by"` // "USER", "SYSTEM"
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is a flat map of paths to entries. It is safe for concurrent use,
// but callbacks always run on the writer's goroutine after the lock is
// released, so a subscriber may write back into the store.
type Store struct {
	mu      sync.Mutex
	entries map[fieldpath.Path]*Entry
	subs    map[fieldpath.Path]map[int]func(fieldpath.Path)
	nextSub int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[fieldpath.Path]*Entry),
		subs:    make(map[fieldpath.Path]map[int]func(fieldpath.Path)),
	}
}

// Read returns the value at p, or nil when the cell is unset.
func (s *Store) Read(p fieldpath.Path) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[p]; ok {
		return e.Value
	}
	return nil
}

// IsDirty reports whether the user edited p since the last Reset.
func (s *Store) IsDirty(p fieldpath.Path) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[p]; ok {
		return e.Dirty
	}
	return false
}

// Set is a user edit.
func (s *Store) Set(p fieldpath.Path, v any) {
	s.Write(p, v, OriginUser)
}

// Write stores v at p. Subscribers of p are notified only when the value
// changed; a user write of an identical value still marks the cell dirty.
func (s *Store) Write(p fieldpath.Path, v any, origin Origin) {
	s.mu.Lock()
	e, ok := s.entries[p]
	if !ok {
		e = &Entry{}
		s.entries[p] = e
	}
	changed := !ok || !equal(e.Value, v)
	if origin == OriginUser {
		e.Dirty = true
	}
	if changed || origin == OriginUser {
		e.Value = v
		e.UpdatedBy = origin.String()
		e.UpdatedAt = time.Now()
	}
	var callbacks []func(fieldpath.Path)
	if changed {
		callbacks = s.subscribersLocked(p)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(p)
	}
}

// Subscribe registers fn for changes to any of paths. The returned function
// removes the subscription and is safe to call more than once.
func (s *Store) Subscribe(paths []fieldpath.Path, fn func(fieldpath.Path)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	for _, p := range paths {
		if s.subs[p] == nil {
			s.subs[p] = make(map[int]func(fieldpath.Path))
		}
		s.subs[p][id] = fn
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, p := range paths {
				delete(s.subs[p], id)
				if len(s.subs[p]) == 0 {
					delete(s.subs, p)
				}
			}
		})
	}
}

// Reset replaces the whole tree with values and clears every dirty flag.
// Subscribers are not notified: a reset is a new baseline, not an edit.
func (s *Store) Reset(values map[fieldpath.Path]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.entries = make(map[fieldpath.Path]*Entry, len(values))
	for p, v := range values {
		s.entries[p] = &Entry{Value: v, UpdatedBy: OriginProgram.String(), UpdatedAt: now}
	}
}

// Delete drops the cell at p without notifying.
func (s *Store) Delete(p fieldpath.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, p)
}

// Move relocates a cell, value and dirty flag together, without notifying.
// Any cell already at to is overwritten; moving an unset cell clears to.
func (s *Store) Move(from, to fieldpath.Path) {
	if from == to {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[from]
	delete(s.entries, from)
	if !ok {
		delete(s.entries, to)
		return
	}
	s.entries[to] = e
}

// Remap relocates every cell in one step, without notifying. fn returns the
// new path of a cell, or false to drop it. Because all moves happen at once,
// swapping two columns cannot clobber either of them. When two cells map to
// the same path, the one with the greater old path wins.
func (s *Store) Remap(fn func(fieldpath.Path) (fieldpath.Path, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := make([]fieldpath.Path, 0, len(s.entries))
	for p := range s.entries {
		old = append(old, p)
	}
	sort.Slice(old, func(i, j int) bool { return old[i] < old[j] })

	next := make(map[fieldpath.Path]*Entry, len(s.entries))
	for _, p := range old {
		if to, keep := fn(p); keep {
			next[to] = s.entries[p]
		}
	}
	s.entries = next
}

// Entry returns a copy of the cell at p.
func (s *Store) Entry(p fieldpath.Path) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[p]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Paths returns every set path under root in lexical order. An empty root
// returns all paths.
func (s *Store) Paths(root fieldpath.Path) []fieldpath.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []fieldpath.Path
	for p := range s.entries {
		if root == "" || fieldpath.HasPrefix(p, root) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies all values.
func (s *Store) Snapshot() map[fieldpath.Path]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[fieldpath.Path]any, len(s.entries))
	for p, e := range s.entries {
		out[p] = e.Value
	}
	return out
}

// ToJSON serializes every entry with its provenance.
func (s *Store) ToJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.entries)
}

// FromJSON rebuilds a store from ToJSON output. JSON numbers come back as
// float64, which is the only numeric type the rules write.
func FromJSON(data []byte) (*Store, error) {
	var entries map[fieldpath.Path]*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode form state: %w", err)
	}
	s := NewStore()
	for p, e := range entries {
		if e != nil {
			s.entries[p] = e
		}
	}
	return s, nil
}

func (s *Store) subscribersLocked(p fieldpath.Path) []func(fieldpath.Path) {
	subs := s.subs[p]
	if len(subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(fieldpath.Path), len(ids))
	for i, id := range ids {
		out[i] = subs[id]
	}
	return out
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}
