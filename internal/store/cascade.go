package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HendryAvila/foundry/internal/tree"
)

// rollup derives a parent's status from its children:
// all complete => complete, any blocked => blocked,
// all not started => not started, anything else => in progress.
func rollup(children []tree.Status) tree.Status {
	complete, notStarted := 0, 0
	for _, st := range children {
		switch st {
		case tree.StatusBlocked:
			return tree.StatusBlocked
		case tree.StatusComplete:
			complete++
		case tree.StatusNotStarted:
			notStarted++
		}
	}
	switch {
	case complete == len(children):
		return tree.StatusComplete
	case notStarted == len(children):
		return tree.StatusNotStarted
	default:
		return tree.StatusInProgress
	}
}

// cascade recomputes the status of each start node that has children and
// of every ancestor above it. Leaves keep their own status.
func (s *Store) cascade(ctx context.Context, tx *sql.Tx, forest []*tree.Node, starts ...string) error {
	idx := tree.Flatten(forest)
	override := make(map[string]tree.Status)
	statusOf := func(n *tree.Node) tree.Status {
		if st, ok := override[n.ID]; ok {
			return st
		}
		return n.Status
	}

	for _, start := range starts {
		for id, steps := start, 0; id != "" && steps <= len(idx); steps++ {
			n, ok := idx[id]
			if !ok {
				break
			}
			if len(n.Children) > 0 {
				kids := make([]tree.Status, len(n.Children))
				for i, c := range n.Children {
					kids[i] = statusOf(c)
				}
				if next := rollup(kids); next != statusOf(n) {
					override[id] = next
					if _, err := tx.ExecContext(ctx,
						`UPDATE nodes SET status = ?, updated_at = datetime('now') WHERE id = ?`,
						string(next), id,
					); err != nil {
						return fmt.Errorf("store: cascade status %s: %w", id, err)
					}
				}
			}
			id = n.ParentID
		}
	}
	return nil
}
