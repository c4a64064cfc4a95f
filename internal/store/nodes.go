package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/HendryAvila/foundry/internal/tree"
)

// ─── Reads ───────────────────────────────────────────────────────────────────

// FetchTree returns the live forest of projectID, children ordered by
// position. An unknown project yields an empty forest.
func (s *Store) FetchTree(ctx context.Context, projectID string) ([]*tree.Node, error) {
	forest, err := s.loadForest(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	return forest, nil
}

// Projects lists the projects that have at least one live node.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT project_id FROM nodes WHERE deleted_at IS NULL ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadForest(ctx context.Context, q querier, projectID string) ([]*tree.Node, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, parent_id, title, description, level, status, position
		 FROM nodes
		 WHERE project_id = ? AND deleted_at IS NULL
		 ORDER BY position, created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: load tree: %w", err)
	}
	defer rows.Close()

	var flat []*tree.Node
	for rows.Next() {
		var (
			n      tree.Node
			parent sql.NullString
			level  string
			status string
		)
		if err := rows.Scan(&n.ID, &parent, &n.Title, &n.Description, &level, &status, &n.Position); err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		n.ParentID = parent.String
		n.Level = tree.Level(level)
		n.Status = tree.Status(status)
		flat = append(flat, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load tree: %w", err)
	}
	return s.assemble(flat), nil
}

// assemble links position-ordered rows into a forest. Rows whose parent is
// not live are dropped.
func (s *Store) assemble(flat []*tree.Node) []*tree.Node {
	byID := make(map[string]*tree.Node, len(flat))
	for _, n := range flat {
		byID[n.ID] = n
	}
	roots := make([]*tree.Node, 0)
	for _, n := range flat {
		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[n.ParentID]
		if !ok {
			s.log.Warn("dropping orphan node", "node", n.ID, "parent", n.ParentID)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots
}

// locate loads the forest that holds id.
func (s *Store) locate(ctx context.Context, q querier, id string) ([]*tree.Node, *tree.Node, error) {
	var projectID string
	err := q.QueryRowContext(ctx,
		`SELECT project_id FROM nodes WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, notFound(id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: lookup %s: %w", id, err)
	}
	forest, err := s.loadForest(ctx, q, projectID)
	if err != nil {
		return nil, nil, err
	}
	n := tree.FindNode(forest, id)
	if n == nil {
		return nil, nil, notFound(id)
	}
	return forest, n, nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// CreateNode inserts a node as the last child of parentID (empty = root
// list). Its level is one below the parent, or epic at the root.
func (s *Store) CreateNode(ctx context.Context, projectID, parentID, title string) (*tree.Node, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, invalid(errors.New("project id is required"))
	}

	var created *tree.Node
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		forest, err := s.loadForest(ctx, tx, projectID)
		if err != nil {
			return err
		}
		level, siblings := tree.LevelEpic, forest
		if parentID != "" {
			parent := tree.FindNode(forest, parentID)
			if parent == nil {
				return notFound(parentID)
			}
			next, ok := parent.Level.Next()
			if !ok {
				return conflict(tree.ErrNoChildren)
			}
			level, siblings = next, parent.Children
		}

		n := &tree.Node{
			ID:       uuid.NewString(),
			ParentID: parentID,
			Title:    strings.TrimSpace(title),
			Level:    level,
			Status:   tree.StatusNotStarted,
			Position: len(siblings),
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (id, project_id, parent_id, title, level, status, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, projectID, nullable(parentID), n.Title, string(n.Level), string(n.Status), n.Position,
		); err != nil {
			return fmt.Errorf("store: insert node: %w", err)
		}

		after, err := tree.InsertNode(forest, n)
		if err != nil {
			return conflict(err)
		}
		if err := s.cascade(ctx, tx, after, parentID); err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("node created", "node", created.ID, "project", projectID, "parent", parentID)
	return created, nil
}

// RenameNode sets a node's title. Blank titles are rejected.
func (s *Store) RenameNode(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid(errors.New("title must not be blank"))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET title = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		title, id,
	)
	if err != nil {
		return fmt.Errorf("store: rename %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

// SetDescription replaces a node's free-text description.
func (s *Store) SetDescription(ctx context.Context, id, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET description = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		strings.TrimSpace(description), id,
	)
	if err != nil {
		return fmt.Errorf("store: describe %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

// SetStatus sets a node's status and rolls it up through its ancestors.
func (s *Store) SetStatus(ctx context.Context, id string, status tree.Status) error {
	if _, err := tree.ParseStatus(string(status)); err != nil {
		return invalid(err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		forest, n, err := s.locate(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET status = ?, updated_at = datetime('now') WHERE id = ?`,
			string(status), id,
		); err != nil {
			return fmt.Errorf("store: set status %s: %w", id, err)
		}
		after, _ := tree.UpdateNode(forest, id, func(n *tree.Node) { n.Status = status })
		return s.cascade(ctx, tx, after, n.ParentID)
	})
}

// SetLevel changes a node's level by one step. A node with children
// cannot become a task.
func (s *Store) SetLevel(ctx context.Context, id string, level tree.Level) error {
	if _, err := tree.ParseLevel(string(level)); err != nil {
		return invalid(err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, n, err := s.locate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tree.CheckLevelChange(n, level); err != nil {
			return conflict(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET level = ?, updated_at = datetime('now') WHERE id = ?`,
			string(level), id,
		); err != nil {
			return fmt.Errorf("store: set level %s: %w", id, err)
		}
		return nil
	})
}

// MoveNode places id at position among parentID's children (empty = root
// list). Positions past the end append. Both sibling lists are renumbered.
func (s *Store) MoveNode(ctx context.Context, id, parentID string, position int) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		forest, n, err := s.locate(ctx, tx, id)
		if err != nil {
			return err
		}
		idx := tree.Flatten(forest)
		if parentID == id || tree.IsAncestor(idx, id, parentID) {
			return conflict(tree.ErrCycle)
		}
		if err := tree.CheckPlacement(idx, parentID, n.Level); err != nil {
			if errors.Is(err, tree.ErrNodeNotFound) {
				return notFound(parentID)
			}
			return conflict(err)
		}

		from, _ := tree.PlacementOf(forest, id)
		after, err := tree.ApplyPlacement(forest, id, tree.Placement{ParentID: parentID, Position: position})
		if err != nil {
			return conflict(err)
		}
		if err := s.sync(ctx, tx, forest, after, 0); err != nil {
			return err
		}
		return s.cascade(ctx, tx, after, from.ParentID, parentID)
	})
	if err != nil {
		return err
	}
	s.log.Debug("node moved", "node", id, "parent", parentID, "position", position)
	return nil
}

// DeleteNode removes id under policy. Leaves default to delete_only; a
// node with children needs an explicit policy. The removed subtree is
// snapshotted for RestoreNode.
func (s *Store) DeleteNode(ctx context.Context, id string, policy tree.Policy) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		forest, n, err := s.locate(ctx, tx, id)
		if err != nil {
			return err
		}
		resolved, err := tree.ResolvePolicy(n, policy)
		if errors.Is(err, tree.ErrPolicyRequired) {
			return conflict(err)
		}
		if err != nil {
			return invalid(err)
		}

		at, _ := tree.PlacementOf(forest, id)
		snapshot, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("store: snapshot %s: %w", id, err)
		}
		var projectID string
		if err := tx.QueryRowContext(ctx, `SELECT project_id FROM nodes WHERE id = ?`, id).Scan(&projectID); err != nil {
			return fmt.Errorf("store: lookup %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO deletions (node_id, project_id, policy, parent_id, position, snapshot)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, projectID, string(resolved), nullable(at.ParentID), at.Position, string(snapshot),
		)
		if err != nil {
			return fmt.Errorf("store: record deletion: %w", err)
		}
		deletionID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: record deletion: %w", err)
		}

		after, err := tree.ApplyDelete(forest, id, resolved)
		if err != nil {
			return conflict(err)
		}
		if err := s.sync(ctx, tx, forest, after, deletionID); err != nil {
			return err
		}
		return s.cascade(ctx, tx, after, at.ParentID)
	})
	if err != nil {
		return err
	}
	s.log.Debug("node deleted", "node", id, "policy", policy)
	return nil
}

// RestoreNode reverses the most recent unrestored delete of id, putting
// the snapshotted subtree back at its original parent and position.
func (s *Store) RestoreNode(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			deletionID int64
			projectID  string
			parent     sql.NullString
			position   int
			raw        string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, project_id, parent_id, position, snapshot
			 FROM deletions
			 WHERE node_id = ? AND restored_at IS NULL
			 ORDER BY id DESC LIMIT 1`,
			id,
		).Scan(&deletionID, &projectID, &parent, &position, &raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNothingToRestore, id)
		}
		if err != nil {
			return fmt.Errorf("store: lookup deletion %s: %w", id, err)
		}

		var subtree tree.Node
		if err := json.Unmarshal([]byte(raw), &subtree); err != nil {
			return fmt.Errorf("store: decode snapshot %s: %w", id, err)
		}

		forest, err := s.loadForest(ctx, tx, projectID)
		if err != nil {
			return err
		}
		after, err := tree.RestoreSubtree(forest, &subtree, tree.Placement{ParentID: parent.String, Position: position})
		if err != nil {
			return conflict(err)
		}
		if err := s.sync(ctx, tx, forest, after, 0); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE deletions SET restored_at = datetime('now') WHERE id = ?`, deletionID,
		); err != nil {
			return fmt.Errorf("store: mark restored: %w", err)
		}
		return s.cascade(ctx, tx, after, id)
	})
	if err != nil {
		return err
	}
	s.log.Debug("node restored", "node", id)
	return nil
}

// ─── Structural sync ─────────────────────────────────────────────────────────

type slot struct {
	parentID string
	position int
	level    tree.Level
}

// stored reads each node's slot as persisted.
func stored(forest []*tree.Node) map[string]slot {
	out := make(map[string]slot)
	tree.Walk(forest, func(n *tree.Node, _ int) bool {
		out[n.ID] = slot{parentID: n.ParentID, position: n.Position, level: n.Level}
		return true
	})
	return out
}

// layout derives each node's slot from its place in the forest, which
// renumbers every sibling list 0..n-1.
func layout(forest []*tree.Node) map[string]slot {
	out := make(map[string]slot)
	var walk func(nodes []*tree.Node, parentID string)
	walk = func(nodes []*tree.Node, parentID string) {
		for i, n := range nodes {
			out[n.ID] = slot{parentID: parentID, position: i, level: n.Level}
			walk(n.Children, n.ID)
		}
	}
	walk(forest, "")
	return out
}

// sync writes the structural difference between the persisted forest and
// after. Nodes that appear are revived; nodes that vanish are soft-deleted
// under deletionID.
func (s *Store) sync(ctx context.Context, tx *sql.Tx, before, after []*tree.Node, deletionID int64) error {
	was, now := stored(before), layout(after)

	for id, sl := range now {
		prev, existed := was[id]
		switch {
		case !existed:
			if _, err := tx.ExecContext(ctx,
				`UPDATE nodes
				 SET parent_id = ?, position = ?, level = ?,
				     deleted_at = NULL, deletion_id = NULL, updated_at = datetime('now')
				 WHERE id = ?`,
				nullable(sl.parentID), sl.position, string(sl.level), id,
			); err != nil {
				return fmt.Errorf("store: revive %s: %w", id, err)
			}
		case prev != sl:
			if _, err := tx.ExecContext(ctx,
				`UPDATE nodes
				 SET parent_id = ?, position = ?, level = ?, updated_at = datetime('now')
				 WHERE id = ?`,
				nullable(sl.parentID), sl.position, string(sl.level), id,
			); err != nil {
				return fmt.Errorf("store: place %s: %w", id, err)
			}
		}
	}

	for id := range was {
		if _, ok := now[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET deleted_at = datetime('now'), deletion_id = ?, updated_at = datetime('now')
			 WHERE id = ?`,
			deletionID, id,
		); err != nil {
			return fmt.Errorf("store: soft delete %s: %w", id, err)
		}
	}
	return nil
}
