// Package filter computes which feature-tree nodes match a search and
// which must stay visible so every match is reachable in its tree context.
package filter

import (
	"strings"

	"github.com/HendryAvila/foundry/internal/tree"
)

// Criteria is a free-text query plus status and level selections. A node
// passes a selection only if its status or level is in it, so an empty
// selection matches nothing. Start from NewCriteria for "all".
type Criteria struct {
	Query    string
	Statuses map[tree.Status]bool
	Levels   map[tree.Level]bool
}

// NewCriteria returns criteria with every status and level selected.
func NewCriteria() Criteria {
	c := Criteria{
		Statuses: make(map[tree.Status]bool, len(tree.AllStatuses)),
		Levels:   make(map[tree.Level]bool, len(tree.LevelOrder)),
	}
	for _, s := range tree.AllStatuses {
		c.Statuses[s] = true
	}
	for _, l := range tree.LevelOrder {
		c.Levels[l] = true
	}
	return c
}

// WithStatuses returns a copy selecting only the given statuses.
func (c Criteria) WithStatuses(statuses ...tree.Status) Criteria {
	c.Statuses = make(map[tree.Status]bool, len(statuses))
	for _, s := range statuses {
		c.Statuses[s] = true
	}
	return c
}

// WithLevels returns a copy selecting only the given levels.
func (c Criteria) WithLevels(levels ...tree.Level) Criteria {
	c.Levels = make(map[tree.Level]bool, len(levels))
	for _, l := range levels {
		c.Levels[l] = true
	}
	return c
}

// Active reports whether any filter narrows the tree. Empty query with all
// statuses and all levels selected renders the full tree unfiltered.
func (c Criteria) Active() bool {
	if strings.TrimSpace(c.Query) != "" {
		return true
	}
	return !allStatuses(c.Statuses) || !allLevels(c.Levels)
}

func allStatuses(sel map[tree.Status]bool) bool {
	for _, s := range tree.AllStatuses {
		if !sel[s] {
			return false
		}
	}
	return true
}

func allLevels(sel map[tree.Level]bool) bool {
	for _, l := range tree.LevelOrder {
		if !sel[l] {
			return false
		}
	}
	return true
}

// Result holds the match and display sets. When Active is false both sets
// are empty and every node is visible.
type Result struct {
	Active   bool
	Matching map[string]bool
	Display  map[string]bool
}

// Visible reports whether id should render.
func (r Result) Visible(id string) bool {
	return !r.Active || r.Display[id]
}

// AutoExpand returns the ids displayed only because a descendant matches.
// The view must force these open so the match stays visible.
func (r Result) AutoExpand() map[string]bool {
	out := make(map[string]bool)
	for id := range r.Display {
		if !r.Matching[id] {
			out[id] = true
		}
	}
	return out
}

// Compute walks the forest once, carrying the ancestor chain, and returns
// the nodes passing all three predicates plus every ancestor of each.
func Compute(forest []*tree.Node, c Criteria) Result {
	if !c.Active() {
		return Result{Matching: map[string]bool{}, Display: map[string]bool{}}
	}

	res := Result{
		Active:   true,
		Matching: make(map[string]bool),
		Display:  make(map[string]bool),
	}
	query := strings.ToLower(strings.TrimSpace(c.Query))
	statusAll := allStatuses(c.Statuses)
	levelAll := allLevels(c.Levels)

	var walk func(nodes []*tree.Node, chain []string)
	walk = func(nodes []*tree.Node, chain []string) {
		for _, n := range nodes {
			searchMatch := query == "" ||
				strings.Contains(strings.ToLower(n.Title), query) ||
				strings.Contains(strings.ToLower(n.Description), query)
			statusMatch := statusAll || c.Statuses[n.Status]
			levelMatch := levelAll || c.Levels[n.Level]

			if searchMatch && statusMatch && levelMatch {
				res.Matching[n.ID] = true
				res.Display[n.ID] = true
				for _, a := range chain {
					res.Display[a] = true
				}
			}
			walk(n.Children, append(chain, n.ID))
		}
	}
	walk(forest, make([]string, 0, 8))
	return res
}
