// Package treetools provides MCP tool handlers for editing a feature tree.
//
// Each tool handler follows the same pattern:
// - A struct holding the shared *Session, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Every successful result carries the rendered outline plus any
// notifications the coordinator raised during the call.
package treetools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/foundry/internal/coordinator"
)

// Session is the state shared by all tree tools: the open project and the
// notifications collected since the last tool result.
type Session struct {
	workspace      *coordinator.Workspace
	notes          *coordinator.Buffer
	defaultProject string
}

// NewSession creates a Session. notes must be the Notifier (or part of
// the Notifier) the workspace's coordinators report to. When
// defaultProject is set, the first tool call opens it implicitly.
func NewSession(ws *coordinator.Workspace, notes *coordinator.Buffer, defaultProject string) *Session {
	return &Session{workspace: ws, notes: notes, defaultProject: defaultProject}
}

// current returns the open coordinator, opening the default project
// when nothing is open yet.
func (s *Session) current(ctx context.Context) (*coordinator.Coordinator, error) {
	c, err := s.workspace.Current()
	if errors.Is(err, coordinator.ErrNoProject) && s.defaultProject != "" {
		return s.workspace.Open(ctx, s.defaultProject)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: call tree_open first", err)
	}
	return c, nil
}

// respond renders the outline under header, followed by notifications.
func (s *Session) respond(c *coordinator.Coordinator, header string, depth int) *mcp.CallToolResult {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	b.WriteString(Outline(c.View(), RenderOptions{MaxDepth: depth}))
	s.appendNotes(&b)
	return mcp.NewToolResultText(b.String())
}

// fail reports err as a tool error, keeping any notifications.
func (s *Session) fail(action string, err error) *mcp.CallToolResult {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", action, err)
	s.appendNotes(&b)
	return mcp.NewToolResultError(b.String())
}

func (s *Session) appendNotes(b *strings.Builder) {
	notes := s.notes.Drain()
	if len(notes) == 0 {
		return
	}
	b.WriteString("\n\nNotifications:")
	for _, n := range notes {
		fmt.Fprintf(b, "\n- [%s] %s", n.Severity, n.Message)
		if n.CanUndo {
			b.WriteString(" (tree_undo available)")
		}
	}
}
