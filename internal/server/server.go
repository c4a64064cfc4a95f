// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/foundry/internal/config"
	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/httpapi"
	"github.com/HendryAvila/foundry/internal/prompts"
	"github.com/HendryAvila/foundry/internal/resources"
	"github.com/HendryAvila/foundry/internal/store"
	"github.com/HendryAvila/foundry/internal/treetools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// OpenBackend returns the coordinator backend cfg selects: the local
// SQLite store, or a client for a remote foundry API. The cleanup
// function is always non-nil.
func OpenBackend(cfg config.Config, logger *slog.Logger) (coordinator.Backend, func(), error) {
	if cfg.Backend == config.ModeHTTP {
		logger.Info("using remote backend", "url", cfg.API.BaseURL)
		return httpapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout), noop, nil
	}

	st, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, noop, err
	}
	return st, closer(st, logger), nil
}

// OpenStore opens the local store under cfg.DataDir.
func OpenStore(cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	st, err := store.New(store.Config{DataDir: cfg.DataDir, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function releases the backend and must be called
// on shutdown (typically via defer). It is always non-nil.
func New(cfg config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	backend, cleanup, err := OpenBackend(cfg, logger)
	if err != nil {
		return nil, noop, err
	}

	// --- Create shared dependencies ---

	notes := &coordinator.Buffer{}
	ws := coordinator.NewWorkspace(backend, coordinator.Options{
		Logger:           logger,
		Notifier:         coordinator.Multi{coordinator.LogNotifier{Logger: logger}, notes},
		MoveUndoWindow:   cfg.Undo.Move,
		DeleteUndoWindow: cfg.Undo.Delete,
	})
	session := treetools.NewSession(ws, notes, cfg.DefaultProject)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"foundry",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerTreeTools(s, session)

	// --- Register prompts ---

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(ws)
	s.AddResource(resourceHandler.TreeResource(), resourceHandler.HandleTree)

	return s, func() {
		ws.Close()
		cleanup()
	}, nil
}

// registerTreeTools registers every feature-tree MCP tool with the server.
func registerTreeTools(s *server.MCPServer, session *treetools.Session) {
	// --- Navigation ---
	openTool := treetools.NewOpenTool(session)
	s.AddTool(openTool.Definition(), openTool.Handle)

	showTool := treetools.NewShowTool(session)
	s.AddTool(showTool.Definition(), showTool.Handle)

	filterTool := treetools.NewFilterTool(session)
	s.AddTool(filterTool.Definition(), filterTool.Handle)

	expandTool := treetools.NewExpandTool(session)
	s.AddTool(expandTool.Definition(), expandTool.Handle)

	refetchTool := treetools.NewRefetchTool(session)
	s.AddTool(refetchTool.Definition(), refetchTool.Handle)

	// --- Authoring ---
	createTool := treetools.NewCreateTool(session)
	s.AddTool(createTool.Definition(), createTool.Handle)

	confirmTool := treetools.NewConfirmTitleTool(session)
	s.AddTool(confirmTool.Definition(), confirmTool.Handle)

	cancelTool := treetools.NewCancelEditTool(session)
	s.AddTool(cancelTool.Definition(), cancelTool.Handle)

	statusTool := treetools.NewStatusTool(session)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	levelTool := treetools.NewLevelTool(session)
	s.AddTool(levelTool.Definition(), levelTool.Handle)

	// --- Structure ---
	moveTool := treetools.NewMoveTool(session)
	s.AddTool(moveTool.Definition(), moveTool.Handle)

	deleteTool := treetools.NewDeleteTool(session)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	undoTool := treetools.NewUndoTool(session)
	s.AddTool(undoTool.Definition(), undoTool.Handle)
}

// noop is a no-op cleanup function.
func noop() {}

func closer(st *store.Store, logger *slog.Logger) func() {
	return func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close", "error", err)
		}
	}
}

func serverInstructions() string {
	return `You have access to Foundry, a feature-tree planning MCP server.

A project's work is a tree with four fixed levels:
epic > feature > sub_feature > task. Epics are the only roots and every
node sits exactly one level below its parent. Tasks cannot have children.

## WORKFLOW

1. tree_open with a project id (or rely on the configured default project)
2. tree_show to read the outline; ids appear as <level id> after each title
3. node_create adds a child one level below parent_id (an epic when omitted);
   pass title to name it right away
4. node_set_status records progress; parent statuses are recomputed
5. node_move reorders or reparents like a drag and drop (zone before, after or on)
6. node_delete removes nodes; nodes with children need a policy
7. tree_undo reverts the last move (5s) or delete (10s)

Every tool result ends with the current outline plus any notifications.
An illegal move changes nothing and says why.
`
}
