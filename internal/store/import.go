package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/foundry/internal/tree"
)

// Outline is a nested, id-less tree description used for bulk import.
// Levels follow depth: epics at the top, tasks at depth three.
type Outline struct {
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Status      tree.Status `json:"status,omitempty" yaml:"status,omitempty"`
	Children    []Outline   `json:"children,omitempty" yaml:"children,omitempty"`
}

// Import appends items after the project's existing roots and returns the
// number of nodes created. The whole import is one transaction. Imported
// parents take the status their children roll up to.
func (s *Store) Import(ctx context.Context, projectID string, items []Outline) (int, error) {
	if strings.TrimSpace(projectID) == "" {
		return 0, invalid(errors.New("project id is required"))
	}

	count := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		forest, err := s.loadForest(ctx, tx, projectID)
		if err != nil {
			return err
		}

		var parents []string
		var insert func(items []Outline, parentID string, depth, offset int) error
		insert = func(items []Outline, parentID string, depth, offset int) error {
			if len(items) > 0 && depth >= len(tree.LevelOrder) {
				return conflict(fmt.Errorf("outline deeper than %d levels: %w", len(tree.LevelOrder), tree.ErrNoChildren))
			}
			for i, it := range items {
				title := strings.TrimSpace(it.Title)
				if title == "" {
					return invalid(errors.New("outline item has a blank title"))
				}
				status := it.Status
				if status == "" {
					status = tree.StatusNotStarted
				}
				if _, err := tree.ParseStatus(string(status)); err != nil {
					return invalid(err)
				}

				id := uuid.NewString()
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO nodes (id, project_id, parent_id, title, description, level, status, position)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					id, projectID, nullable(parentID), title, strings.TrimSpace(it.Description),
					string(tree.LevelOrder[depth]), string(status), offset+i,
				); err != nil {
					return fmt.Errorf("store: import %q: %w", title, err)
				}
				count++
				if len(it.Children) > 0 {
					parents = append(parents, id)
				}
				if err := insert(it.Children, id, depth+1, 0); err != nil {
					return err
				}
			}
			return nil
		}
		if err := insert(items, "", 0, len(forest)); err != nil {
			return err
		}
		after, err := s.loadForest(ctx, tx, projectID)
		if err != nil {
			return err
		}
		return s.cascade(ctx, tx, after, parents...)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("outline imported", "project", projectID, "nodes", count)
	return count, nil
}
