// ABOUTME: Snapshot and Memento data model for temporal navigation
// ABOUTME: A Memento binds one snapshot to its parsed time and array position

package memento

import "time"

// Snapshot is one stored capture of a resource
type Snapshot struct {
	CollectionID string // Collection (archival unit) holding the capture
	ResourceID   string // Stable identifier shared by every capture of the resource
	Version      int    // Positive version number within the collection
	Timestamp    string // Raw stored capture time, may be empty or malformed
}

// Memento wraps a Snapshot with its parsed timestamp and its index in the
// newest-first array the Timeline was built from.
type Memento struct {
	Snapshot
	Time  time.Time
	Index int

	stamped bool
}

// HasTime reports whether the snapshot carried a parsable timestamp
func (m *Memento) HasTime() bool {
	return m != nil && m.stamped
}

// Before reports whether m is strictly earlier than other
func (m *Memento) Before(other *Memento) bool {
	if !m.HasTime() || !other.HasTime() {
		return false
	}
	return m.Time.Before(other.Time)
}

// After reports whether m is strictly later than other
func (m *Memento) After(other *Memento) bool {
	if !m.HasTime() || !other.HasTime() {
		return false
	}
	return m.Time.After(other.Time)
}

// SameResourceAndVersion compares identity, not time
func (m *Memento) SameResourceAndVersion(other *Memento) bool {
	if m == nil || other == nil {
		return false
	}
	return m.CollectionID == other.CollectionID &&
		m.ResourceID == other.ResourceID &&
		m.Version == other.Version
}

// Navigator is the read side shared by single and merged timelines
type Navigator interface {
	First() *Memento
	Last() *Memento
	Selected() *Memento
	Next() *Memento
	Prev() *Memento
}
