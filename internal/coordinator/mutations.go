package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/foundry/internal/tree"
)

// Create persists an empty-titled node under parentID (empty = root) and
// puts it in editing state. On failure the error is notified and nothing
// enters editing.
func (c *Coordinator) Create(ctx context.Context, parentID string) (*tree.Node, error) {
	if parentID != "" {
		parent, err := c.lookup(parentID)
		if err != nil {
			return nil, err
		}
		if parent.Level.IsMax() {
			return nil, tree.ErrNoChildren
		}
	}

	node, err := c.backend.CreateNode(ctx, c.projectID, parentID, "")
	if err != nil {
		mutationsTotal.WithLabelValues("create", outcomeRolledBack).Inc()
		c.notify(Notification{Severity: SeverityError, Op: "create", NodeID: parentID, Message: fmt.Sprintf("Could not create node: %v", err)})
		return nil, fmt.Errorf("create under %q: %w", parentID, err)
	}

	c.mu.Lock()
	if tree.FindNode(c.forest, node.ID) == nil {
		next, err := tree.InsertNode(c.forest, node)
		if err != nil {
			c.log.Warn("created node has no local parent", "node", node.ID, "parent", node.ParentID, "error", err)
		} else {
			c.forest = next
		}
	}
	c.editing[node.ID] = editState{created: true}
	if parentID != "" {
		c.expanded[parentID] = true
	}
	c.mu.Unlock()

	mutationsTotal.WithLabelValues("create", outcomeConfirmed).Inc()
	c.log.Debug("node created", "node", node.ID, "parent", parentID)
	cp := *node
	return &cp, nil
}

// StartEditing puts an existing node into title-authoring state.
func (c *Coordinator) StartEditing(id string) error {
	if _, err := c.lookup(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.editing[id]; !ok {
		c.editing[id] = editState{}
	}
	return nil
}

// ConfirmTitle commits an edited title. A blank title deletes the node
// with delete_only instead: nodes are never saved with an empty title.
func (c *Coordinator) ConfirmTitle(ctx context.Context, id, title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		if err := c.deleteNode(ctx, id, tree.PolicyDeleteOnly, false); err != nil {
			return err
		}
		c.clearEditing(id)
		return nil
	}

	n, err := c.lookup(id)
	if err != nil {
		return err
	}
	if n.Title == trimmed {
		c.clearEditing(id)
		return nil
	}

	persisted, _, err := c.run(ctx, mutation{
		op:     "rename",
		nodeID: id,
		apply: update(id, func(n *tree.Node) {
			n.Title = trimmed
		}),
		remote: func(ctx context.Context) error {
			return c.backend.RenameNode(ctx, id, trimmed)
		},
	})
	if err != nil {
		return err
	}
	if persisted {
		c.clearEditing(id)
	}
	return nil
}

// CancelEdit abandons title authoring. A node created in this session and
// still untitled is deleted (delete_only); otherwise this is a no-op revert.
func (c *Coordinator) CancelEdit(ctx context.Context, id string) error {
	c.mu.Lock()
	st, editing := c.editing[id]
	n := tree.FindNode(c.forest, id)
	c.mu.Unlock()

	if !editing {
		return nil
	}
	if st.created && n != nil && strings.TrimSpace(n.Title) == "" {
		if err := c.deleteNode(ctx, id, tree.PolicyDeleteOnly, false); err != nil {
			return err
		}
	}
	c.clearEditing(id)
	return nil
}

// SetStatus changes a node's status optimistically and refetches on
// success, since the backend may cascade the status to ancestors.
func (c *Coordinator) SetStatus(ctx context.Context, id string, status tree.Status) error {
	if _, err := tree.ParseStatus(string(status)); err != nil {
		return err
	}
	persisted, _, err := c.run(ctx, mutation{
		op:     "set status",
		nodeID: id,
		apply: update(id, func(n *tree.Node) {
			n.Status = status
		}),
		remote: func(ctx context.Context) error {
			return c.backend.SetStatus(ctx, id, status)
		},
	})
	if err != nil {
		return err
	}
	if persisted {
		c.reconcile(ctx)
	}
	return nil
}

// SetLevel changes a node's level by a single step. Turning a node with
// children into a task is rejected before any network call.
func (c *Coordinator) SetLevel(ctx context.Context, id string, level tree.Level) error {
	persisted, _, err := c.run(ctx, mutation{
		op:     "set level",
		nodeID: id,
		apply: func(forest []*tree.Node) ([]*tree.Node, error) {
			n := tree.FindNode(forest, id)
			if n == nil {
				return nil, fmt.Errorf("node %q: %w", id, tree.ErrNodeNotFound)
			}
			if err := tree.CheckLevelChange(n, level); err != nil {
				return nil, err
			}
			return update(id, func(n *tree.Node) { n.Level = level })(forest)
		},
		remote: func(ctx context.Context) error {
			return c.backend.SetLevel(ctx, id, level)
		},
	})
	if err != nil {
		return err
	}
	if persisted {
		c.reconcile(ctx)
	}
	return nil
}

// Move validates and applies a drag-and-drop move. An invalid move is
// ignored: moved=false with a nil error. On success the tree is refetched
// for authoritative positions and, unless the response was superseded by
// a refetch, a short undo window opens.
func (c *Coordinator) Move(ctx context.Context, m tree.Move) (moved bool, err error) {
	var from, to tree.Placement
	rejected := false

	persisted, current, err := c.run(ctx, mutation{
		op:     "move",
		nodeID: m.DraggedID,
		apply: func(forest []*tree.Node) ([]*tree.Node, error) {
			if err := tree.CheckMove(tree.Flatten(forest), m); err != nil {
				rejected = true
				return nil, err
			}
			from, _ = tree.PlacementOf(forest, m.DraggedID)
			next, err := tree.ApplyMove(forest, m)
			if err != nil {
				return nil, err
			}
			to, _ = tree.PlacementOf(next, m.DraggedID)
			return next, nil
		},
		remote: func(ctx context.Context) error {
			return c.backend.MoveNode(ctx, m.DraggedID, to.ParentID, to.Position)
		},
	})
	if rejected {
		return false, nil
	}
	if err != nil || !persisted {
		return false, err
	}

	if current {
		c.offerUndo(&PendingUndo{
			Kind:      UndoMove,
			NodeID:    m.DraggedID,
			From:      from,
			ExpiresAt: timeNow().Add(c.opts.MoveUndoWindow),
		}, "Node moved")
	}
	c.reconcile(ctx)
	return true, nil
}

// Delete removes a node. Nodes with children need an explicit policy;
// leaves default to delete_only. On success a longer undo window opens
// unless the response was superseded by a refetch.
func (c *Coordinator) Delete(ctx context.Context, id string, policy tree.Policy) error {
	return c.deleteNode(ctx, id, policy, true)
}

func (c *Coordinator) deleteNode(ctx context.Context, id string, policy tree.Policy, withUndo bool) error {
	var (
		resolved tree.Policy
		subtree  *tree.Node
		at       tree.Placement
	)
	persisted, current, err := c.run(ctx, mutation{
		op:     "delete",
		nodeID: id,
		apply: func(forest []*tree.Node) ([]*tree.Node, error) {
			n := tree.FindNode(forest, id)
			if n == nil {
				return nil, fmt.Errorf("node %q: %w", id, tree.ErrNodeNotFound)
			}
			p, err := tree.ResolvePolicy(n, policy)
			if err != nil {
				return nil, err
			}
			resolved, subtree = p, n
			at, _ = tree.PlacementOf(forest, id)
			return tree.ApplyDelete(forest, id, p)
		},
		remote: func(ctx context.Context) error {
			return c.backend.DeleteNode(ctx, id, resolved)
		},
	})
	if err != nil || !persisted {
		return err
	}

	c.clearEditing(id)
	if withUndo && current {
		c.offerUndo(&PendingUndo{
			Kind:      UndoDelete,
			NodeID:    id,
			Policy:    resolved,
			From:      at,
			ExpiresAt: timeNow().Add(c.opts.DeleteUndoWindow),
			subtree:   subtree,
		}, "Node deleted")
	}
	c.reconcile(ctx)
	return nil
}

func (c *Coordinator) clearEditing(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.editing, id)
}

// update builds an apply func editing a single node copy-on-write.
func update(id string, fn func(n *tree.Node)) func([]*tree.Node) ([]*tree.Node, error) {
	return func(forest []*tree.Node) ([]*tree.Node, error) {
		next, ok := tree.UpdateNode(forest, id, fn)
		if !ok {
			return nil, fmt.Errorf("node %q: %w", id, tree.ErrNodeNotFound)
		}
		return next, nil
	}
}
