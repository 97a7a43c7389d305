// ABOUTME: Link sets for navigated mementos
// ABOUTME: Renders first/prev/next/last relations from resolved mementos

package linkformat

import "github.com/nainya/mementod/pkg/memento"

// Navigation holds already-resolved mementos. Nil entries are skipped.
type Navigation struct {
	First *memento.Memento
	Prev  *memento.Memento
	Next  *memento.Memento
	Last  *memento.Memento
}

// FromNavigator copies the bookends and neighbors out of nav
func FromNavigator(nav memento.Navigator) Navigation {
	return Navigation{
		First: nav.First(),
		Prev:  nav.Prev(),
		Next:  nav.Next(),
		Last:  nav.Last(),
	}
}

// Links renders the navigation relations in first, prev, next, last order.
// Unstamped bookends are left out because they carry no datetime.
func (n Navigation) Links(prefix string) []string {
	var links []string
	add := func(m *memento.Memento, rel Relation) {
		if m.HasTime() {
			links = append(links, MementoLink(m, rel, prefix))
		}
	}
	add(n.First, FirstMemento)
	add(n.Prev, PrevMemento)
	add(n.Next, NextMemento)
	add(n.Last, LastMemento)
	return links
}
