package treetools

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/tree"
)

// RenderOptions tunes Outline.
type RenderOptions struct {
	// MaxDepth limits rendering to this many levels below the roots;
	// expanded nodes are opened regardless. Zero renders everything.
	MaxDepth int
	// Style decorates a node's status mark. Nil leaves it plain.
	Style func(status tree.Status, mark string) string
}

var statusMarks = map[tree.Status]string{
	tree.StatusNotStarted: "[ ]",
	tree.StatusInProgress: "[~]",
	tree.StatusComplete:   "[x]",
	tree.StatusBlocked:    "[!]",
}

// StatusMark returns the checkbox-style mark for a status.
func StatusMark(s tree.Status) string {
	if m, ok := statusMarks[s]; ok {
		return m
	}
	return "[?]"
}

// Outline renders a view as an indented text outline. Nodes hidden by the
// active filter are skipped; matches are starred.
func Outline(v coordinator.View, opts RenderOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project %s: %d nodes", v.ProjectID, tree.Size(v.Forest))
	if v.Filter.Active {
		fmt.Fprintf(&b, ", %d matching", len(v.Filter.Matching))
	}
	b.WriteString("\n")
	if !v.Loaded {
		b.WriteString("(not loaded)\n")
		return b.String()
	}
	if len(v.Forest) == 0 {
		b.WriteString("(empty: use node_create to add an epic)\n")
	}

	var walk func(nodes []*tree.Node, depth int)
	walk = func(nodes []*tree.Node, depth int) {
		for _, n := range nodes {
			if !v.Filter.Visible(n.ID) {
				continue
			}
			b.WriteString(strings.Repeat("  ", depth))
			mark := StatusMark(n.Status)
			if opts.Style != nil {
				mark = opts.Style(n.Status, mark)
			}
			title := n.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(&b, "%s %s  <%s %s>", mark, title, n.Level, n.ID)
			if v.Filter.Active && v.Filter.Matching[n.ID] {
				b.WriteString(" *")
			}
			if v.Editing[n.ID] {
				b.WriteString(" (editing)")
			}

			open := opts.MaxDepth <= 0 || depth+1 < opts.MaxDepth || v.Expanded[n.ID]
			if len(n.Children) > 0 && !open {
				fmt.Fprintf(&b, " (+%d)", tree.CountDescendants(n))
			}
			b.WriteString("\n")
			if open {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(v.Forest, 0)

	if v.Undo != nil {
		fmt.Fprintf(&b, "\nUndo available: %s of %s until %s\n",
			v.Undo.Kind, v.Undo.NodeID, v.Undo.ExpiresAt.Format("15:04:05"))
	}
	return b.String()
}
