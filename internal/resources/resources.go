// Package resources implements MCP resource handlers for the open feature tree.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (foundry://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/foundry/internal/coordinator"
)

// TreeURI addresses the open project's tree.
const TreeURI = "foundry://tree/current"

// Handler manages tree resource endpoints.
type Handler struct {
	workspace *coordinator.Workspace
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(ws *coordinator.Workspace) *Handler {
	return &Handler{workspace: ws}
}

// TreeResource returns the MCP resource definition for the open tree.
func (h *Handler) TreeResource() mcp.Resource {
	return mcp.NewResource(
		TreeURI,
		"Feature Tree",
		mcp.WithResourceDescription("The open project's feature tree with filter, editing and undo state"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleTree returns the open tree as JSON.
func (h *Handler) HandleTree(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	c, err := h.workspace.Current()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(snapshotOf(c.View()), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling tree: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
