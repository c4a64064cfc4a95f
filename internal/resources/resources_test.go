package resources

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/store"
)

func newWorkspace(t *testing.T) (*coordinator.Workspace, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.New(store.Config{DataDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return coordinator.NewWorkspace(s, coordinator.Options{Logger: logger, Notifier: &coordinator.Buffer{}}), s
}

func read(t *testing.T, h *Handler) mcp.TextResourceContents {
	t.Helper()
	var req mcp.ReadResourceRequest
	req.Params.URI = TreeURI
	out, err := h.HandleTree(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out, 1)
	tc, ok := out[0].(mcp.TextResourceContents)
	require.True(t, ok)
	return tc
}

func TestTreeResource_Definition(t *testing.T) {
	ws, _ := newWorkspace(t)
	r := NewHandler(ws).TreeResource()
	assert.Equal(t, TreeURI, r.URI)
	assert.Equal(t, "application/json", r.MIMEType)
}

func TestHandleTree_NoProject(t *testing.T) {
	ws, _ := newWorkspace(t)
	tc := read(t, NewHandler(ws))
	assert.Equal(t, "text/plain", tc.MIMEType)
	assert.Contains(t, tc.Text, "no project open")
}

func TestHandleTree_Snapshot(t *testing.T) {
	ctx := context.Background()
	ws, s := newWorkspace(t)
	e, err := s.CreateNode(ctx, "shop", "", "Checkout")
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, "shop", e.ID, "Cart")
	require.NoError(t, err)

	c, err := ws.Open(ctx, "shop")
	require.NoError(t, err)
	c.ToggleExpanded(e.ID)

	tc := read(t, NewHandler(ws))
	assert.Equal(t, "application/json", tc.MIMEType)

	var got snapshot
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &got))
	assert.Equal(t, "shop", got.Project)
	assert.True(t, got.Loaded)
	assert.Equal(t, 2, got.Nodes)
	require.Len(t, got.Forest, 1)
	assert.Equal(t, "Cart", got.Forest[0].Children[0].Title)
	assert.Equal(t, []string{e.ID}, got.Expanded)
	assert.False(t, got.Filtered)
	assert.Nil(t, got.Undo)
}

func TestKeys_SortedAndSkipsFalse(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, keys(map[string]bool{"b": true, "a": true, "c": false}))
	assert.Nil(t, keys(nil))
}
