package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the tree-review MCP prompt.
// It instructs the AI to report progress and blockers in the open tree.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("tree-review",
		mcp.WithPromptDescription(
			"Review progress in the open feature tree: what is done, "+
				"what is blocked, and what to pick up next.",
		),
	)
}

// Handle processes the tree-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Feature Tree Review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `tree_show` to load my feature tree.\n\n" +
						"Then:\n" +
						"1. Use `tree_filter` with statuses='blocked' and list every blocked item with its epic\n" +
						"2. Summarize progress per epic (complete vs. total tasks)\n" +
						"3. Suggest the next three tasks to start, preferring ones under in-progress features\n" +
						"4. Clear the filter when you are done",
				),
			},
		},
	}, nil
}
