package treetools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/foundry/internal/tree"
)

// CreateTool handles the node_create MCP tool.
type CreateTool struct {
	session *Session
}

// NewCreateTool creates a CreateTool.
func NewCreateTool(s *Session) *CreateTool {
	return &CreateTool{session: s}
}

// Definition returns the MCP tool definition for node_create.
func (t *CreateTool) Definition() mcp.Tool {
	return mcp.NewTool("node_create",
		mcp.WithDescription(
			"Create a node one level below its parent (an epic when parent_id is empty). "+
				"Without a title the node stays in editing mode until node_confirm_title or node_cancel_edit; "+
				"confirming or cancelling with an empty title removes it again.",
		),
		mcp.WithString("parent_id",
			mcp.Description("Parent node id. Omit to create a root epic."),
		),
		mcp.WithString("title",
			mcp.Description("Optional title, confirmed right after creation"),
		),
	)
}

// Handle processes the node_create tool call.
func (t *CreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	n, err := c.Create(ctx, req.GetString("parent_id", ""))
	if err != nil {
		return t.session.fail("create failed", err), nil
	}

	title := req.GetString("title", "")
	if title == "" {
		return t.session.respond(c, fmt.Sprintf("Created %s %s; awaiting a title.", n.Level, n.ID), 0), nil
	}
	if err := c.ConfirmTitle(ctx, n.ID, title); err != nil {
		return t.session.fail("created "+n.ID+" but setting its title failed", err), nil
	}
	return t.session.respond(c, fmt.Sprintf("Created %s %s %q.", n.Level, n.ID, title), 0), nil
}

// ─── ConfirmTitleTool ───────────────────────────────────────────────────────

// ConfirmTitleTool handles the node_confirm_title MCP tool.
type ConfirmTitleTool struct {
	session *Session
}

// NewConfirmTitleTool creates a ConfirmTitleTool.
func NewConfirmTitleTool(s *Session) *ConfirmTitleTool {
	return &ConfirmTitleTool{session: s}
}

// Definition returns the MCP tool definition for node_confirm_title.
func (t *ConfirmTitleTool) Definition() mcp.Tool {
	return mcp.NewTool("node_confirm_title",
		mcp.WithDescription(
			"Set a node's title and leave editing mode. An empty title deletes the node "+
				"(children are promoted, no undo is offered).",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Node id"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
	)
}

// Handle processes the node_confirm_title tool call.
func (t *ConfirmTitleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	if err := c.ConfirmTitle(ctx, id, req.GetString("title", "")); err != nil {
		return t.session.fail("rename failed", err), nil
	}
	return t.session.respond(c, "Title confirmed.", 0), nil
}

// ─── CancelEditTool ─────────────────────────────────────────────────────────

// CancelEditTool handles the node_cancel_edit MCP tool.
type CancelEditTool struct {
	session *Session
}

// NewCancelEditTool creates a CancelEditTool.
func NewCancelEditTool(s *Session) *CancelEditTool {
	return &CancelEditTool{session: s}
}

// Definition returns the MCP tool definition for node_cancel_edit.
func (t *CancelEditTool) Definition() mcp.Tool {
	return mcp.NewTool("node_cancel_edit",
		mcp.WithDescription("Leave editing mode without changing the title. A just-created untitled node is removed."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Node id"),
		),
	)
}

// Handle processes the node_cancel_edit tool call.
func (t *CancelEditTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	if err := c.CancelEdit(ctx, id); err != nil {
		return t.session.fail("cancel failed", err), nil
	}
	return t.session.respond(c, "Edit cancelled.", 0), nil
}

// ─── StatusTool ─────────────────────────────────────────────────────────────

// StatusTool handles the node_set_status MCP tool.
type StatusTool struct {
	session *Session
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(s *Session) *StatusTool {
	return &StatusTool{session: s}
}

// Definition returns the MCP tool definition for node_set_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("node_set_status",
		mcp.WithDescription("Set a node's status. Ancestor statuses are recomputed by the backend."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Node id"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("One of: not_started, in_progress, complete, blocked"),
			mcp.Enum(string(tree.StatusNotStarted), string(tree.StatusInProgress),
				string(tree.StatusComplete), string(tree.StatusBlocked)),
		),
	)
}

// Handle processes the node_set_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	status, err := tree.ParseStatus(req.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	if err := c.SetStatus(ctx, id, status); err != nil {
		return t.session.fail("status change failed", err), nil
	}
	return t.session.respond(c, fmt.Sprintf("Node %s is now %s.", id, status), 0), nil
}

// ─── LevelTool ──────────────────────────────────────────────────────────────

// LevelTool handles the node_set_level MCP tool.
type LevelTool struct {
	session *Session
}

// NewLevelTool creates a LevelTool.
func NewLevelTool(s *Session) *LevelTool {
	return &LevelTool{session: s}
}

// Definition returns the MCP tool definition for node_set_level.
func (t *LevelTool) Definition() mcp.Tool {
	return mcp.NewTool("node_set_level",
		mcp.WithDescription(
			"Promote or demote a node by one level. A node with children cannot become a task.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Node id"),
		),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("One of: epic, feature, sub_feature, task"),
			mcp.Enum(string(tree.LevelEpic), string(tree.LevelFeature),
				string(tree.LevelSubFeature), string(tree.LevelTask)),
		),
	)
}

// Handle processes the node_set_level tool call.
func (t *LevelTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	level, err := tree.ParseLevel(req.GetString("level", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	if err := c.SetLevel(ctx, id, level); err != nil {
		return t.session.fail("level change failed", err), nil
	}
	return t.session.respond(c, fmt.Sprintf("Node %s is now a %s.", id, level), 0), nil
}
