package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/HendryAvila/foundry/internal/tree"
)

// UndoKind names the mutation a PendingUndo reverses.
type UndoKind string

const (
	UndoMove   UndoKind = "move"
	UndoDelete UndoKind = "delete"
)

// PendingUndo is the single most recent undoable mutation. A newer
// undoable mutation replaces it.
type PendingUndo struct {
	Kind   UndoKind       `json:"kind"`
	NodeID string         `json:"nodeId"`
	Policy tree.Policy    `json:"policy,omitempty"`
	From   tree.Placement `json:"from"`
	// ExpiresAt is when the undo offer lapses.
	ExpiresAt time.Time `json:"expiresAt"`

	// subtree is the deleted node as it stood before the delete.
	subtree *tree.Node
}

// offerUndo records u as the pending undo and tells the view about it.
func (c *Coordinator) offerUndo(u *PendingUndo, message string) {
	c.mu.Lock()
	c.undo = u
	c.mu.Unlock()
	c.notify(Notification{
		Severity: SeverityInfo,
		Op:       string(u.Kind),
		NodeID:   u.NodeID,
		Message:  message,
		CanUndo:  true,
	})
}

// Undo reverses the pending move or delete if its window is still open.
// The offer is consumed whether or not the reversal succeeds.
func (c *Coordinator) Undo(ctx context.Context) error {
	c.mu.Lock()
	u := c.undo
	c.undo = nil
	c.mu.Unlock()

	if u == nil {
		undoTotal.WithLabelValues("none", "empty").Inc()
		return ErrNothingToUndo
	}
	if !timeNow().Before(u.ExpiresAt) {
		undoTotal.WithLabelValues(string(u.Kind), "expired").Inc()
		return ErrUndoExpired
	}

	var m mutation
	switch u.Kind {
	case UndoMove:
		m = mutation{
			op:     "undo move",
			nodeID: u.NodeID,
			apply: func(forest []*tree.Node) ([]*tree.Node, error) {
				next, err := tree.ApplyPlacement(forest, u.NodeID, u.From)
				if err != nil {
					// The refetched forest may no longer hold the node;
					// leave the view alone and let the server decide.
					return forest, nil
				}
				return next, nil
			},
			remote: func(ctx context.Context) error {
				return c.backend.MoveNode(ctx, u.NodeID, u.From.ParentID, u.From.Position)
			},
		}
	case UndoDelete:
		m = mutation{
			op:     "undo delete",
			nodeID: u.NodeID,
			apply: func(forest []*tree.Node) ([]*tree.Node, error) {
				if u.subtree == nil {
					return forest, nil
				}
				next, err := tree.RestoreSubtree(forest, u.subtree, u.From)
				if err != nil {
					return forest, nil
				}
				return next, nil
			},
			remote: func(ctx context.Context) error {
				return c.backend.RestoreNode(ctx, u.NodeID)
			},
		}
	default:
		return fmt.Errorf("unknown undo kind %q", u.Kind)
	}

	persisted, _, err := c.run(ctx, m)
	if err != nil {
		undoTotal.WithLabelValues(string(u.Kind), "failed").Inc()
		return err
	}
	undoTotal.WithLabelValues(string(u.Kind), "ok").Inc()
	if persisted {
		c.reconcile(ctx)
	}
	return nil
}
