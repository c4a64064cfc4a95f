package treetools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/tree"
)

// MoveTool handles the node_move MCP tool.
type MoveTool struct {
	session *Session
}

// NewMoveTool creates a MoveTool.
func NewMoveTool(s *Session) *MoveTool {
	return &MoveTool{session: s}
}

// Definition returns the MCP tool definition for node_move.
func (t *MoveTool) Definition() mcp.Tool {
	return mcp.NewTool("node_move",
		mcp.WithDescription(
			"Move a node relative to a target, like a drag and drop. 'before'/'after' make it a sibling "+
				"of the target; 'on' makes it the target's first child. The node must be exactly one level "+
				"below its new parent (epics at the root). Illegal moves change nothing. "+
				"A successful move can be reverted with tree_undo for a few seconds.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the node to move"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("Id of the node to drop onto or next to"),
		),
		mcp.WithString("zone",
			mcp.Required(),
			mcp.Description("Drop relation to the target"),
			mcp.Enum(string(tree.ZoneBefore), string(tree.ZoneAfter), string(tree.ZoneOn)),
		),
	)
}

// Handle processes the node_move tool call.
func (t *MoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	targetID, errRes := requireString(req, "target_id")
	if errRes != nil {
		return errRes, nil
	}
	zone, err := tree.ParseZone(req.GetString("zone", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}

	m := tree.Move{DraggedID: id, Target: tree.DropTarget{TargetID: targetID, Zone: zone}}
	moved, err := c.Move(ctx, m)
	if err != nil {
		return t.session.fail("move failed", err), nil
	}
	if !moved {
		reason := tree.CheckMove(tree.Flatten(c.Forest()), m)
		if reason == nil {
			reason = errors.New("not applied")
		}
		return t.session.respond(c, fmt.Sprintf("Move ignored: %v.", reason), 0), nil
	}
	return t.session.respond(c, fmt.Sprintf("Moved %s %s %s.", id, zone, targetID), 0), nil
}

// ─── DeleteTool ─────────────────────────────────────────────────────────────

// DeleteTool handles the node_delete MCP tool.
type DeleteTool struct {
	session *Session
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(s *Session) *DeleteTool {
	return &DeleteTool{session: s}
}

// Definition returns the MCP tool definition for node_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("node_delete",
		mcp.WithDescription(
			"Delete a node. Nodes with children need a policy: delete_only promotes the children as they are, "+
				"delete_subtree removes everything below, reparent_children promotes the children one level up. "+
				"A delete can be reverted with tree_undo for a few seconds.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Node id"),
		),
		mcp.WithString("policy",
			mcp.Description("Required when the node has children"),
			mcp.Enum(string(tree.PolicyDeleteOnly), string(tree.PolicyDeleteSubtree),
				string(tree.PolicyReparentChildren)),
		),
	)
}

// Handle processes the node_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireString(req, "id")
	if errRes != nil {
		return errRes, nil
	}
	var policy tree.Policy
	if raw := req.GetString("policy", ""); raw != "" {
		p, err := tree.ParsePolicy(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		policy = p
	}
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	if err := c.Delete(ctx, id, policy); err != nil {
		return t.session.fail("delete failed", err), nil
	}
	return t.session.respond(c, fmt.Sprintf("Deleted %s.", id), 0), nil
}

// ─── UndoTool ───────────────────────────────────────────────────────────────

// UndoTool handles the tree_undo MCP tool.
type UndoTool struct {
	session *Session
}

// NewUndoTool creates an UndoTool.
func NewUndoTool(s *Session) *UndoTool {
	return &UndoTool{session: s}
}

// Definition returns the MCP tool definition for tree_undo.
func (t *UndoTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_undo",
		mcp.WithDescription(
			"Revert the most recent move or delete while its undo window is open "+
				"(moves: 5 seconds, deletes: 10 seconds by default).",
		),
	)
}

// Handle processes the tree_undo tool call.
func (t *UndoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.session.current(ctx)
	if err != nil {
		return t.session.fail("no tree", err), nil
	}
	err = c.Undo(ctx)
	switch {
	case errors.Is(err, coordinator.ErrNothingToUndo), errors.Is(err, coordinator.ErrUndoExpired):
		return t.session.respond(c, fmt.Sprintf("Nothing undone: %v.", err), 0), nil
	case err != nil:
		return t.session.fail("undo failed", err), nil
	}
	return t.session.respond(c, "Undone.", 0), nil
}
