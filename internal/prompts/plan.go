// Package prompts implements MCP prompt handlers for feature-tree workflows.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the tree-plan MCP prompt.
// It guides the AI to break a product goal down into a feature tree.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("tree-plan",
		mcp.WithPromptDescription(
			"Break a product goal down into epics, features, sub-features and tasks "+
				"and record them in a project's feature tree.",
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Project identifier to plan in"),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the project should achieve"),
		),
	)
}

// Handle processes the tree-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := "default"
	goal := ""
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["project"]; ok && v != "" {
			project = v
		}
		goal = args["goal"]
	}

	goalLine := "Ask me what the project should achieve before creating anything."
	if goal != "" {
		goalLine = fmt.Sprintf("The goal is: %s", goal)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan feature tree: %s", project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to plan the work for project '%s' as a feature tree.\n\n"+
						"%s\n\n"+
						"Please:\n"+
						"1. Run `tree_open` with project='%s' and look at what already exists\n"+
						"2. Propose 2-5 epics and confirm them with me\n"+
						"3. Create each with `node_create` (title set), then add features under each epic, "+
						"sub-features under features, and tasks under sub-features\n"+
						"4. Keep every task small enough to finish in a day\n"+
						"5. Finish with `tree_show` and summarize the plan",
					project, goalLine, project,
				)),
			},
		},
	}, nil
}
