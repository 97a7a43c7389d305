// ABOUTME: Navigation across the same resource held by several collections
// ABOUTME: Combines one Timeline per collection into a single set of links

package memento

import (
	"fmt"
	"time"
)

// Merged navigates a resource preserved in several collections. Each group
// passed to Merge is one collection's newest-first version array.
type Merged struct {
	timelines []*Timeline

	first    *Memento
	last     *Memento
	selected *Memento
	next     *Memento
	prev     *Memento
	outcome  Outcome
}

// Merge builds one timeline per group and combines them. Bookends are the
// earliest and latest stamped mementos across every group. When target is
// nil only the bookends are set.
func Merge(groups [][]Snapshot, target *time.Time, opts ...Option) (*Merged, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no collections to merge", ErrInvalidInput)
	}

	mg := &Merged{timelines: make([]*Timeline, 0, len(groups))}
	for i, g := range groups {
		var (
			tl  *Timeline
			err error
		)
		if target != nil {
			tl, err = NewTimelineAt(g, *target, opts...)
		} else {
			tl, err = NewTimeline(g, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("collection %d: %w", i, err)
		}
		mg.timelines = append(mg.timelines, tl)
	}

	for _, tl := range mg.timelines {
		oldest, err := tl.NearestNewerOrSelf(tl.Len() - 1)
		if err != nil {
			// No stamped snapshot in this collection
			continue
		}
		newest, _ := tl.NearestOlderOrSelf(0)

		if mg.first == nil || oldest.Before(mg.first) {
			mg.first = oldest
		}
		if mg.last == nil || newest.After(mg.last) {
			mg.last = newest
		}
	}
	if mg.first == nil || mg.last == nil {
		return nil, fmt.Errorf("%w: every collection lacks timestamps", ErrNoTimestamp)
	}

	if target != nil {
		mg.selectAt(*target)
	}
	return mg, nil
}

func (mg *Merged) selectAt(target time.Time) {
	var candidates []*Memento
	for _, tl := range mg.timelines {
		sel := tl.Selected()
		if !sel.HasTime() {
			// Fallback landed on a corrupt oldest entry: use the oldest stamped one
			var err error
			if sel, err = tl.NearestNewerOrSelf(tl.Len() - 1); err != nil {
				continue
			}
		}
		mg.selected = nearest(target, mg.selected, sel)

		candidates = append(candidates, tl.Prev(), sel, tl.Next())
		if sel.Index > 0 {
			if m, err := tl.NearestNewerOrSelf(sel.Index - 1); err == nil {
				candidates = append(candidates, m)
			}
		}
	}

	switch {
	case mg.selected.Time.Equal(target):
		mg.outcome = Exact
	case mg.selected.Time.After(target):
		mg.outcome = BeforeAll
	case !mg.selected.Before(mg.last):
		mg.outcome = AfterAll
	default:
		mg.outcome = Prior
	}

	pivot := mg.selected.Time
	for _, c := range candidates {
		if !c.HasTime() {
			continue
		}
		if c.Time.After(pivot) && (mg.next == nil || c.Before(mg.next)) {
			mg.next = c
		}
		if c.Time.Before(pivot) && (mg.prev == nil || c.After(mg.prev)) {
			mg.prev = c
		}
	}
}

// nearest prefers the latest memento at or before target, then the earliest
// one after it
func nearest(target time.Time, a, b *Memento) *Memento {
	if !a.HasTime() {
		if b.HasTime() {
			return b
		}
		return a
	}
	if !b.HasTime() {
		return a
	}

	aPrior := !a.Time.After(target)
	bPrior := !b.Time.After(target)
	switch {
	case aPrior && bPrior:
		if b.After(a) {
			return b
		}
		return a
	case aPrior:
		return a
	case bPrior:
		return b
	}
	if b.Before(a) {
		return b
	}
	return a
}

// Outcome reports how Selected relates to the target
func (mg *Merged) Outcome() Outcome {
	return mg.outcome
}

// Timelines returns the per-collection timelines in group order
func (mg *Merged) Timelines() []*Timeline {
	return mg.timelines
}

// Stamped returns every stamped memento of every collection
func (mg *Merged) Stamped() []Memento {
	var out []Memento
	for _, tl := range mg.timelines {
		for _, m := range tl.Mementos() {
			if m.HasTime() {
				out = append(out, m)
			}
		}
	}
	return out
}

func (mg *Merged) First() *Memento    { return mg.first }
func (mg *Merged) Last() *Memento     { return mg.last }
func (mg *Merged) Selected() *Memento { return mg.selected }
func (mg *Merged) Next() *Memento     { return mg.next }
func (mg *Merged) Prev() *Memento     { return mg.prev }
