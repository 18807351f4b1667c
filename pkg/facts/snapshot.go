package facts

import "github.com/cockroachdb/pebble"

// Snapshot is a point-in-time read handle over the fact store. Reads
// against one snapshot are mutually consistent regardless of concurrent
// writers. Callers must Close it when done.
type Snapshot struct {
	s *pebble.Snapshot
}

// Snap captures a snapshot of the store's current state.
func Snap() (*Snapshot, error) {
	if db == nil {
		return nil, ErrNotOpened
	}
	return &Snapshot{s: db.NewSnapshot()}, nil
}

func (s *Snapshot) Close() error { return s.s.Close() }

// Holds reports whether the fact holds in this snapshot.
func (s *Snapshot) Holds(attr, entity, value string) (bool, error) {
	return holds(s.s, attr, entity, value)
}

// Values returns the values asserted for (attr, entity) in this snapshot.
func (s *Snapshot) Values(attr, entity string) ([]string, error) {
	return values(s.s, attr, entity)
}

// Entities returns the entities holding (attr, _, value) in this snapshot.
func (s *Snapshot) Entities(attr, value string) ([]string, error) {
	return entities(s.s, attr, value)
}

// HasValue reports whether any value is asserted for (attr, entity).
func (s *Snapshot) HasValue(attr, entity string) (bool, error) {
	return hasPrefix(s.s, curPrefix(attr, entity))
}

// HasEntity reports whether any entity holds (attr, _, value).
func (s *Snapshot) HasEntity(attr, value string) (bool, error) {
	return hasPrefix(s.s, invPrefix(attr, value))
}

// History returns the assert/retract history for (attr, entity).
func (s *Snapshot) History(attr, entity string) ([]Entry, error) {
	return history(s.s, attr, entity)
}

// AsOf returns the values held for (attr, entity) at transaction time t.
func (s *Snapshot) AsOf(attr, entity string, t int64) ([]string, error) {
	return asOf(s.s, attr, entity, t)
}
