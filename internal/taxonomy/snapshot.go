// Package taxonomy resolves free-text technology mentions against the known
// technology tree and elects a primary technology per job.
package taxonomy

import (
	"fmt"
	"strings"
)

// DefaultCap bounds how many taxonomy entries a snapshot holds. Entries past
// the cap are silently dropped.
const DefaultCap = 10000

// Entry is one taxonomy row as loaded from the store.
type Entry struct {
	ID       int64
	Name     string
	Category string
	ParentID *int64
}

// Snapshot is an immutable view of the taxonomy name cache. It is built once
// per run; taxonomy changes after construction are not observed. Reloading
// means building a new Snapshot.
//
// Iteration order is the entries' load order and is the tie-break order for
// fuzzy matching and primary election. Callers must not rely on any other
// ordering.
type Snapshot struct {
	entries []cachedEntry
	byName  map[string]int64
	names   map[int64]string
}

type cachedEntry struct {
	id    int64
	lower string
}

// NewSnapshot builds a snapshot from entries in order, keeping at most cap of
// them (DefaultCap when cap <= 0). On a case-insensitive name collision the
// first entry wins.
func NewSnapshot(entries []Entry, cap int) *Snapshot {
	if cap <= 0 {
		cap = DefaultCap
	}
	if len(entries) > cap {
		entries = entries[:cap]
	}
	snap := &Snapshot{
		entries: make([]cachedEntry, 0, len(entries)),
		byName:  make(map[string]int64, len(entries)),
		names:   make(map[int64]string, len(entries)),
	}
	for _, e := range entries {
		lower := strings.ToLower(e.Name)
		if _, ok := snap.byName[lower]; ok {
			continue
		}
		snap.byName[lower] = e.ID
		snap.names[e.ID] = e.Name
		snap.entries = append(snap.entries, cachedEntry{id: e.ID, lower: lower})
	}
	return snap
}

// Len reports how many entries the snapshot holds.
func (s *Snapshot) Len() int { return len(s.entries) }

// Name returns the canonical (as-loaded) name for a technology id.
func (s *Snapshot) Name(id int64) (string, bool) {
	name, ok := s.names[id]
	return name, ok
}

// Match resolves candidate names to technology ids: case-insensitive exact
// lookup first, then a symmetric substring scan over the cache in load order,
// first hit wins. Unmatched candidates are dropped. The result is
// deduplicated and keeps matched order.
func (s *Snapshot) Match(names []string) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, name := range names {
		cand := strings.ToLower(strings.TrimSpace(name))
		if cand == "" {
			continue
		}
		id, ok := s.byName[cand]
		if !ok {
			id, ok = s.fuzzy(cand)
		}
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// fuzzy scans every cached entry and takes the first symmetric containment
// hit. Linear in the taxonomy size; acceptable at the snapshot cap.
func (s *Snapshot) fuzzy(cand string) (int64, bool) {
	for _, e := range s.entries {
		if strings.Contains(cand, e.lower) || strings.Contains(e.lower, cand) {
			return e.id, true
		}
	}
	return 0, false
}

// Validate checks taxonomy integrity before a snapshot is built: names must
// be unique case-insensitively, parents must exist, and no entry may be its
// own ancestor.
func Validate(entries []Entry) error {
	byID := make(map[int64]Entry, len(entries))
	names := make(map[string]int64, len(entries))
	for _, e := range entries {
		lower := strings.ToLower(e.Name)
		if prev, ok := names[lower]; ok {
			return fmt.Errorf("taxonomy: duplicate name %q (ids %d, %d)", e.Name, prev, e.ID)
		}
		names[lower] = e.ID
		byID[e.ID] = e
	}
	for _, e := range entries {
		seen := map[int64]struct{}{e.ID: {}}
		cur := e
		for cur.ParentID != nil {
			parent, ok := byID[*cur.ParentID]
			if !ok {
				return fmt.Errorf("taxonomy: %q references missing parent %d", cur.Name, *cur.ParentID)
			}
			if _, cycle := seen[parent.ID]; cycle {
				return fmt.Errorf("taxonomy: cycle through %q", e.Name)
			}
			seen[parent.ID] = struct{}{}
			cur = parent
		}
	}
	return nil
}
