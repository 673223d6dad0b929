package entity

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Table is the shared collection of entities. Updates take the write lock,
// snapshots and lookups take the read lock.
type Table struct {
	mu       sync.RWMutex
	entities map[string]*Entity

	// only the most recent historyLimit outcomes are kept when > 0
	historyLimit int
}

// NewTable returns an empty table. historyLimit 0 keeps the full history.
func NewTable(historyLimit int) *Table {
	return &Table{
		entities:     map[string]*Entity{},
		historyLimit: historyLimit,
	}
}

// Update appends outcome to the entity's history, creating the entity on
// first sight, and returns a copy of the updated entity.
func (t *Table) Update(id string, outcome Outcome, ts time.Time) Entity {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entities[id]
	if !ok {
		e = &Entity{ID: id, FirstSeen: ts}
		t.entities[id] = e
	}

	e.Outcomes = append(e.Outcomes, outcome)
	if t.historyLimit > 0 && len(e.Outcomes) > t.historyLimit {
		drop := len(e.Outcomes) - t.historyLimit
		e.Outcomes = slices.Delete(e.Outcomes, 0, drop)
	}

	if ts.After(e.LastSeen) {
		e.LastSeen = ts
	}
	e.Active = true
	e.InactiveSince = time.Time{}

	return e.Clone()
}

// Get returns a copy of the entity.
func (t *Table) Get(id string) (Entity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

// Len returns the number of known entities, active or not.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// ActiveCount returns the number of active entities.
func (t *Table) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.entities {
		if e.Active {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all entities sorted by ID.
func (t *Table) Snapshot() []Entity {
	t.mu.RLock()
	r := make([]Entity, 0, len(t.entities))
	for _, e := range t.entities {
		r = append(r, e.Clone())
	}
	t.mu.RUnlock()

	slices.SortFunc(r, func(a, b Entity) int {
		return strings.Compare(a.ID, b.ID)
	})
	return r
}

// Expire marks entities that have not been updated within window as
// inactive and returns their IDs.
func (t *Table) Expire(now time.Time, window time.Duration) []string {
	if window <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for id, e := range t.entities {
		if !e.Active || !e.IsStale(now, window) {
			continue
		}
		e.Active = false
		e.InactiveSince = now
		expired = append(expired, id)
	}
	slices.Sort(expired)
	return expired
}

// Prune removes entities that have been inactive for longer than retain.
func (t *Table) Prune(now time.Time, retain time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for id, e := range t.entities {
		if e.Active || e.InactiveSince.IsZero() {
			continue
		}
		if now.Sub(e.InactiveSince) > retain {
			delete(t.entities, id)
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	return removed
}

// Restore loads previously recorded entities, replacing any with the same
// ID. Restored entities are active; the next Expire decides otherwise.
func (t *Table) Restore(entities []Entity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entities {
		e = e.Clone()
		if t.historyLimit > 0 && len(e.Outcomes) > t.historyLimit {
			e.Outcomes = slices.Clone(e.Outcomes[len(e.Outcomes)-t.historyLimit:])
		}
		if e.FirstSeen.IsZero() {
			e.FirstSeen = e.LastSeen
		}
		e.Active = true
		e.InactiveSince = time.Time{}
		t.entities[e.ID] = &e
	}
}
