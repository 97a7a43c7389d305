// ABOUTME: Timeline over the newest-first versions of one resource
// ABOUTME: Point-in-time selection with corrupt-timestamp skipping

package memento

import (
	"fmt"
	"time"
)

// none marks an absent selection
const none = -1

// Option configures timeline construction
type Option func(*options)

type options struct {
	parse TimestampParser
}

// WithParser replaces ParseTimestamp for every snapshot of the timeline
func WithParser(p TimestampParser) Option {
	return func(o *options) {
		if p != nil {
			o.parse = p
		}
	}
}

// Timeline navigates the versions of a single resource. The snapshots must be
// ordered newest first: index 0 is the most recent capture and the last index
// the oldest. The order is trusted, not checked.
//
// A Timeline is immutable once built and safe for concurrent readers.
type Timeline struct {
	mementos []Memento

	selected int
	next     int
	prev     int
	outcome  Outcome
}

// Outcome classifies how Selected was chosen
type Outcome int

const (
	// NoTarget means the timeline was built without a target time
	NoTarget Outcome = iota
	// Exact means a snapshot was captured at the target time
	Exact
	// Prior means the closest snapshot captured before the target won
	Prior
	// BeforeAll means the target predates every snapshot
	BeforeAll
	// AfterAll means the target postdates every snapshot
	AfterAll
)

func (o Outcome) String() string {
	switch o {
	case Exact:
		return "exact"
	case Prior:
		return "prior"
	case BeforeAll:
		return "before_all"
	case AfterAll:
		return "after_all"
	}
	return "no_target"
}

// NewTimeline builds a timeline with bookends only
func NewTimeline(snapshots []Snapshot, opts ...Option) (*Timeline, error) {
	return build(snapshots, nil, opts)
}

// NewTimelineAt builds a timeline and selects the snapshot current as of target
func NewTimelineAt(snapshots []Snapshot, target time.Time, opts ...Option) (*Timeline, error) {
	return build(snapshots, &target, opts)
}

func build(snapshots []Snapshot, target *time.Time, opts []Option) (*Timeline, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: timeline needs at least one snapshot", ErrInvalidInput)
	}

	o := options{parse: ParseTimestamp}
	for _, opt := range opts {
		opt(&o)
	}

	tl := &Timeline{
		mementos: make([]Memento, len(snapshots)),
		selected: none,
		next:     none,
		prev:     none,
	}
	for i, s := range snapshots {
		t, ok := o.parse(s.Timestamp)
		tl.mementos[i] = Memento{Snapshot: s, Time: t, Index: i, stamped: ok}
	}

	if target != nil {
		tl.selectAt(*target)
	}
	return tl, nil
}

// selectAt fills selected, next and prev for target
func (tl *Timeline) selectAt(target time.Time) {
	k := none
	for i := range tl.mementos {
		m := &tl.mementos[i]
		if m.stamped && !m.Time.After(target) {
			k = i
			break
		}
	}
	switch {
	case k == none:
		// Target predates everything: fall back to the oldest
		k = len(tl.mementos) - 1
		tl.outcome = BeforeAll
	case tl.mementos[k].Time.Equal(target):
		tl.outcome = Exact
	case k == tl.newestStamped():
		tl.outcome = AfterAll
	default:
		tl.outcome = Prior
	}
	tl.selected = k

	if k > 0 {
		if m, err := tl.NearestNewerOrSelf(k - 1); err == nil {
			tl.next = m.Index
		}
	}
	if k+1 < len(tl.mementos) {
		if m, err := tl.NearestOlderOrSelf(k + 1); err == nil {
			tl.prev = m.Index
		}
	}
}

// newestStamped returns the index of the newest stamped memento, none without one
func (tl *Timeline) newestStamped() int {
	m, err := tl.NearestOlderOrSelf(0)
	if err != nil {
		return none
	}
	return m.Index
}

// Outcome reports how Selected was chosen
func (tl *Timeline) Outcome() Outcome {
	return tl.outcome
}

// Len returns the number of snapshots
func (tl *Timeline) Len() int {
	return len(tl.mementos)
}

// At returns the memento at index i
func (tl *Timeline) At(i int) (*Memento, error) {
	if i < 0 || i >= len(tl.mementos) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(tl.mementos))
	}
	return tl.memento(i), nil
}

// Mementos returns a copy of every memento, newest first
func (tl *Timeline) Mementos() []Memento {
	out := make([]Memento, len(tl.mementos))
	copy(out, tl.mementos)
	return out
}

// Stamped counts mementos carrying a valid timestamp
func (tl *Timeline) Stamped() int {
	n := 0
	for i := range tl.mementos {
		if tl.mementos[i].stamped {
			n++
		}
	}
	return n
}

// First returns the oldest memento by position
func (tl *Timeline) First() *Memento {
	return tl.memento(len(tl.mementos) - 1)
}

// Last returns the newest memento by position
func (tl *Timeline) Last() *Memento {
	return tl.memento(0)
}

// Selected returns the memento current as of the target, nil without one
func (tl *Timeline) Selected() *Memento {
	return tl.memento(tl.selected)
}

// Next returns the stamped memento immediately newer than Selected
func (tl *Timeline) Next() *Memento {
	return tl.memento(tl.next)
}

// Prev returns the stamped memento immediately older than Selected
func (tl *Timeline) Prev() *Memento {
	return tl.memento(tl.prev)
}

// NearestNewerOrSelf returns the memento at cursor if it is stamped, otherwise
// the nearest stamped memento toward index 0.
func (tl *Timeline) NearestNewerOrSelf(cursor int) (*Memento, error) {
	return tl.nearestStamped(cursor, -1)
}

// NearestOlderOrSelf returns the memento at cursor if it is stamped, otherwise
// the nearest stamped memento toward the oldest index.
func (tl *Timeline) NearestOlderOrSelf(cursor int) (*Memento, error) {
	return tl.nearestStamped(cursor, 1)
}

func (tl *Timeline) nearestStamped(cursor, step int) (*Memento, error) {
	if cursor < 0 || cursor >= len(tl.mementos) {
		return nil, fmt.Errorf("%w: cursor %d not in [0,%d)", ErrIndexOutOfRange, cursor, len(tl.mementos))
	}
	for i := cursor; i >= 0 && i < len(tl.mementos); i += step {
		if tl.mementos[i].stamped {
			return tl.memento(i), nil
		}
	}
	return nil, fmt.Errorf("%w: from cursor %d", ErrNoTimestamp, cursor)
}

// memento hands out a copy so callers cannot mutate the timeline
func (tl *Timeline) memento(i int) *Memento {
	if i == none {
		return nil
	}
	m := tl.mementos[i]
	return &m
}
