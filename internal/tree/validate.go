package tree

import (
	"errors"
	"fmt"
)

// Validation rejections. None of these ever reach the network.
var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrSameNode       = errors.New("cannot drop a node on itself")
	ErrCycle          = errors.New("cannot move a node under its own descendant")
	ErrNoChildren     = errors.New("target level cannot have children")
	ErrLevelMismatch  = errors.New("level is not one step below the new parent")
	ErrPolicyRequired = errors.New("node has children: an explicit delete policy is required")
	ErrLevelStep      = errors.New("level can only change by a single step")
	ErrHasChildren    = errors.New("node has children that the new level cannot hold")
)

// CheckMove decides whether a move is legal. Rules are applied in order
// and the first failure is returned:
//
//  1. dragged and target must differ
//  2. dragged must not be an ancestor of target
//  3. zone "on": target must be able to hold children one level below it
//  4. zone "before"/"after": target's parent (or the root list) must be
//     exactly one level above dragged
func CheckMove(idx Index, m Move) error {
	dragged, ok := idx[m.DraggedID]
	if !ok {
		return fmt.Errorf("dragged %q: %w", m.DraggedID, ErrNodeNotFound)
	}
	target, ok := idx[m.Target.TargetID]
	if !ok {
		return fmt.Errorf("target %q: %w", m.Target.TargetID, ErrNodeNotFound)
	}

	if dragged.ID == target.ID {
		return ErrSameNode
	}
	if IsAncestor(idx, dragged.ID, target.ID) {
		return ErrCycle
	}

	switch m.Target.Zone {
	case ZoneOn:
		if target.Level.IsMax() {
			return ErrNoChildren
		}
		if !target.Level.IsDirectlyAbove(dragged.Level) {
			return fmt.Errorf("%s under %s: %w", dragged.Level, target.Level, ErrLevelMismatch)
		}
		return nil
	case ZoneBefore, ZoneAfter:
		return checkParentLevel(idx, target.ParentID, dragged.Level)
	default:
		_, err := ParseZone(string(m.Target.Zone))
		return err
	}
}

// CanMove is the boolean form of CheckMove used for drag-over previews.
func CanMove(idx Index, m Move) bool {
	return CheckMove(idx, m) == nil
}

// CheckPlacement validates that a node of the given level may live under
// parentID (empty = root list).
func CheckPlacement(idx Index, parentID string, level Level) error {
	return checkParentLevel(idx, parentID, level)
}

func checkParentLevel(idx Index, parentID string, level Level) error {
	if parentID == "" {
		if !level.IsMin() {
			return fmt.Errorf("%s at root: %w", level, ErrLevelMismatch)
		}
		return nil
	}
	parent, ok := idx[parentID]
	if !ok {
		return fmt.Errorf("parent %q: %w", parentID, ErrNodeNotFound)
	}
	if !parent.Level.IsDirectlyAbove(level) {
		return fmt.Errorf("%s under %s: %w", level, parent.Level, ErrLevelMismatch)
	}
	return nil
}

// CheckLevelChange validates a level transition for node. Only single-step
// transitions are allowed, and a node with children cannot become a task.
func CheckLevelChange(node *Node, to Level) error {
	if to.Rank() < 0 {
		_, err := ParseLevel(string(to))
		return err
	}
	diff := to.Rank() - node.Level.Rank()
	if diff != 1 && diff != -1 {
		return fmt.Errorf("%s to %s: %w", node.Level, to, ErrLevelStep)
	}
	if to.IsMax() && len(node.Children) > 0 {
		return ErrHasChildren
	}
	return nil
}

// ResolvePolicy returns the effective delete policy for node. Leaves
// default to delete_only; nodes with children need an explicit policy.
func ResolvePolicy(node *Node, requested Policy) (Policy, error) {
	if requested != "" {
		return ParsePolicy(string(requested))
	}
	if len(node.Children) > 0 {
		return "", ErrPolicyRequired
	}
	return PolicyDeleteOnly, nil
}
