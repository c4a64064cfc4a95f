package treetools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/foundry/internal/filter"
	"github.com/HendryAvila/foundry/internal/tree"
)

// OpenTool handles the tree_open MCP tool.
type OpenTool struct {
	session *Session
}

// NewOpenTool creates an OpenTool.
func NewOpenTool(s *Session) *OpenTool {
	return &OpenTool{session: s}
}

// Definition returns the MCP tool definition for tree_open.
func (t *OpenTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_open",
		mcp.WithDescription(
			"Open a project's feature tree (epics > features > sub-features > tasks). "+
				"Replaces the currently open project and discards its local state.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
	)
}

// Handle processes the tree_open tool call.
func (t *OpenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, errRes := requireString(req, "project")
	if errRes != nil {
		return errRes, nil
	}
	c, err := t.session.workspace.Open(ctx, project)
	if err != nil {
		return t.session.fail("failed to open project", err), nil
	}
	return t.session.respond(c, fmt.Sprintf("Opened project %q.", project), 0), nil
}

// ─── ShowTool ───────────────────────────────────────────────────────────────

// ShowTool handles the tree_show MCP tool.
type ShowTool struct {
	session *Session
}

// NewShowTool creates a ShowTool.
func NewShowTool(s *Session) *ShowTool {
	return &ShowTool{session: s}
}

// Definition returns the MCP tool definition for tree_show.
func (t *ShowTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_show",
		mcp.WithDescription("Show the open feature tree as an outline with status marks, levels and node ids."),
		mcp.WithNumber("depth",
			mcp.Description("Levels to render below the roots (default: all). Expanded nodes and filter matches always open."),
		),
	)
}

// Handle processes the tree_show tool call.
func (t *ShowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	return t.session.respond(c, "", intArg(req, "depth", 0)), nil
}

// ─── FilterTool ─────────────────────────────────────────────────────────────

// FilterTool handles the tree_filter MCP tool.
type FilterTool struct {
	session *Session
}

// NewFilterTool creates a FilterTool.
func NewFilterTool(s *Session) *FilterTool {
	return &FilterTool{session: s}
}

// Definition returns the MCP tool definition for tree_filter.
func (t *FilterTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_filter",
		mcp.WithDescription(
			"Filter the tree by text, status and level. Ancestors of matches stay visible and open. "+
				"Call with no arguments to clear the filter.",
		),
		mcp.WithString("query",
			mcp.Description("Case-insensitive text matched against titles and descriptions"),
		),
		mcp.WithString("statuses",
			mcp.Description("Comma-separated statuses to keep: not_started, in_progress, complete, blocked (default: all)"),
		),
		mcp.WithString("levels",
			mcp.Description("Comma-separated levels to keep: epic, feature, sub_feature, task (default: all)"),
		),
	)
}

// Handle processes the tree_filter tool call.
func (t *FilterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}

	crit := filter.NewCriteria()
	crit.Query = req.GetString("query", "")
	if names := listArg(req, "statuses"); len(names) > 0 {
		statuses := make([]tree.Status, 0, len(names))
		for _, n := range names {
			st, err := tree.ParseStatus(n)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			statuses = append(statuses, st)
		}
		crit = crit.WithStatuses(statuses...)
	}
	if names := listArg(req, "levels"); len(names) > 0 {
		levels := make([]tree.Level, 0, len(names))
		for _, n := range names {
			l, err := tree.ParseLevel(n)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			levels = append(levels, l)
		}
		crit = crit.WithLevels(levels...)
	}

	c.SetFilter(crit)
	header := "Filter cleared."
	if crit.Active() {
		header = "Filter applied."
	}
	return t.session.respond(c, header, 0), nil
}

// ─── RefetchTool ────────────────────────────────────────────────────────────

// RefetchTool handles the tree_refetch MCP tool.
type RefetchTool struct {
	session *Session
}

// NewRefetchTool creates a RefetchTool.
func NewRefetchTool(s *Session) *RefetchTool {
	return &RefetchTool{session: s}
}

// Definition returns the MCP tool definition for tree_refetch.
func (t *RefetchTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_refetch",
		mcp.WithDescription("Reload the tree from the backend. Responses to earlier in-flight edits are discarded."),
	)
}

// Handle processes the tree_refetch tool call.
func (t *RefetchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	if err := c.Refetch(ctx); err != nil {
		return t.session.fail("refetch failed", err), nil
	}
	return t.session.respond(c, "Tree reloaded.", 0), nil
}

// ─── ExpandTool ─────────────────────────────────────────────────────────────

// ExpandTool handles the node_toggle_expand MCP tool.
type ExpandTool struct {
	session *Session
}

// NewExpandTool creates an ExpandTool.
func NewExpandTool(s *Session) *ExpandTool {
	return &ExpandTool{session: s}
}

// Definition returns the MCP tool definition for node_toggle_expand.
func (t *ExpandTool) Definition() mcp.Tool {
	return mcp.NewTool("node_toggle_expand",
		mcp.WithDescription("Open or close a node in depth-limited outlines (see tree_show depth)."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Node id"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Depth for the returned outline (default: 1)"),
		),
	)
}

// Handle processes the node_toggle_expand tool call.
func (t *ExpandTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	state := "collapsed"
	if c.ToggleExpanded(id) {
		state = "expanded"
	}
	return t.session.respond(c, fmt.Sprintf("Node %s %s.", id, state), intArg(req, "depth", 1)), nil
}
