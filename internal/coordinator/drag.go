package coordinator

import (
	"context"
	"fmt"

	"github.com/HendryAvila/foundry/internal/tree"
)

// DragState is the single in-progress drag interaction. Target is nil
// until the pointer hovers a drop zone.
type DragState struct {
	DraggedID string           `json:"draggedId"`
	Target    *tree.DropTarget `json:"target,omitempty"`
	Valid     bool             `json:"valid"`
}

// BeginDrag starts dragging id. Only one drag may be active at a time.
func (c *Coordinator) BeginDrag(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drag != nil {
		return ErrDragActive
	}
	if tree.FindNode(c.forest, id) == nil {
		return fmt.Errorf("node %q: %w", id, tree.ErrNodeNotFound)
	}
	c.drag = &DragState{DraggedID: id}
	return nil
}

// DragOver records the hovered drop zone and reports whether dropping
// there would be accepted. It never touches the forest.
func (c *Coordinator) DragOver(target tree.DropTarget) (DragState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drag == nil {
		return DragState{}, ErrNoDrag
	}
	t := target
	c.drag.Target = &t
	c.drag.Valid = tree.CanMove(tree.Flatten(c.forest), tree.Move{DraggedID: c.drag.DraggedID, Target: t})
	return *c.drag, nil
}

// Drop ends the drag and performs the move for the last hovered target.
// Dropping with no target or on an invalid zone is a silent no-op.
func (c *Coordinator) Drop(ctx context.Context) (bool, error) {
	c.mu.Lock()
	d := c.drag
	c.drag = nil
	c.mu.Unlock()

	if d == nil {
		return false, ErrNoDrag
	}
	if d.Target == nil {
		return false, nil
	}
	return c.Move(ctx, tree.Move{DraggedID: d.DraggedID, Target: *d.Target})
}

// CancelDrag abandons the current drag, if any.
func (c *Coordinator) CancelDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag = nil
}
