// Package tree implements the feature-tree model: an ordered forest of
// epics, features, sub-features and tasks, plus the pure transforms the
// mutation coordinator applies optimistically (move, delete, level change).
//
// Design principles:
//   - Forests are values: transforms rebuild the path from the root to the
//     changed node and share untouched subtrees, never editing in place.
//   - Validation and application are separate: CheckMove decides, ApplyMove
//     transforms, PlacementOf derives the persistence parameters afterwards.
package tree

import (
	"fmt"
	"strings"
)

// --- Level enum ---

// Level is a node's rank in the fixed containment hierarchy.
type Level string

const (
	LevelEpic       Level = "epic"
	LevelFeature    Level = "feature"
	LevelSubFeature Level = "sub_feature"
	LevelTask       Level = "task"
)

// LevelOrder lists levels from outermost to innermost.
var LevelOrder = []Level{LevelEpic, LevelFeature, LevelSubFeature, LevelTask}

// Rank returns the ordinal of the level in LevelOrder, or -1 if unknown.
func (l Level) Rank() int {
	for i, lv := range LevelOrder {
		if lv == l {
			return i
		}
	}
	return -1
}

// Next returns the level one step below l. ok is false for task.
func (l Level) Next() (Level, bool) {
	r := l.Rank()
	if r < 0 || r >= len(LevelOrder)-1 {
		return "", false
	}
	return LevelOrder[r+1], true
}

// Prev returns the level one step above l. ok is false for epic.
func (l Level) Prev() (Level, bool) {
	r := l.Rank()
	if r <= 0 {
		return "", false
	}
	return LevelOrder[r-1], true
}

// IsMax reports whether l is the innermost level (cannot have children).
func (l Level) IsMax() bool { return l == LevelOrder[len(LevelOrder)-1] }

// IsMin reports whether l is the outermost level (the only valid root level).
func (l Level) IsMin() bool { return l == LevelOrder[0] }

// IsDirectlyAbove reports whether l is exactly one step above child.
func (l Level) IsDirectlyAbove(child Level) bool {
	r, c := l.Rank(), child.Rank()
	return r >= 0 && c >= 0 && c == r+1
}

// ParseLevel returns an error if the level is not recognized.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.TrimSpace(s))
	if l.Rank() < 0 {
		return "", fmt.Errorf("invalid level %q: must be one of: epic, feature, sub_feature, task", s)
	}
	return l, nil
}

// --- Status enum ---

// Status is a node's progress state.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusBlocked    Status = "blocked"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusNotStarted, StatusInProgress, StatusComplete, StatusBlocked}

var validStatuses = map[Status]bool{
	StatusNotStarted: true,
	StatusInProgress: true,
	StatusComplete:   true,
	StatusBlocked:    true,
}

// ParseStatus returns an error if the status is not recognized.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid status %q: must be one of: not_started, in_progress, complete, blocked", s)
	}
	return st, nil
}

// --- Zone enum ---

// Zone is the drop relation between a dragged node and its target.
type Zone string

const (
	ZoneBefore Zone = "before"
	ZoneAfter  Zone = "after"
	ZoneOn     Zone = "on"
)

// ParseZone returns an error if the zone is not recognized.
func ParseZone(s string) (Zone, error) {
	switch z := Zone(strings.TrimSpace(s)); z {
	case ZoneBefore, ZoneAfter, ZoneOn:
		return z, nil
	}
	return "", fmt.Errorf("invalid zone %q: must be one of: before, after, on", s)
}

// --- Delete policy enum ---

// Policy selects what happens to a deleted node's children.
type Policy string

const (
	// PolicyDeleteOnly removes the node and promotes its children, levels
	// unchanged, into the node's former slot.
	PolicyDeleteOnly Policy = "delete_only"
	// PolicyDeleteSubtree removes the node and every descendant.
	PolicyDeleteSubtree Policy = "delete_subtree"
	// PolicyReparentChildren removes the node and promotes its children one
	// level up into the node's former slot.
	PolicyReparentChildren Policy = "reparent_children"
)

// ParsePolicy returns an error if the policy is not recognized.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.TrimSpace(s)); p {
	case PolicyDeleteOnly, PolicyDeleteSubtree, PolicyReparentChildren:
		return p, nil
	}
	return "", fmt.Errorf("invalid delete policy %q: must be one of: delete_only, delete_subtree, reparent_children", s)
}

// --- Core data structures ---

// Node is one entry of the feature tree. ParentID is empty for roots.
type Node struct {
	ID          string  `json:"id"`
	ParentID    string  `json:"parentId,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Level       Level   `json:"level"`
	Status      Status  `json:"status"`
	Position    int     `json:"position"`
	Children    []*Node `json:"children,omitempty"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// DropTarget names the node a drag hovers over and the relation to it.
type DropTarget struct {
	TargetID string `json:"targetId"`
	Zone     Zone   `json:"zone"`
}

// Move is a candidate drag-and-drop operation.
type Move struct {
	DraggedID string     `json:"draggedId"`
	Target    DropTarget `json:"target"`
}

// Placement is where a node sits: its parent (empty for the root list)
// and its index among siblings. It doubles as the persistence parameters
// for a move.
type Placement struct {
	ParentID string `json:"parentId,omitempty"`
	Position int    `json:"position"`
}
