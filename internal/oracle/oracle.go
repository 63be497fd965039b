// Package oracle adapts a chat-completions reasoning model to the agent
// loop. Each call hands the model the full conversation transcript plus
// the discovered tool schemas and returns either a final answer or a set
// of tool invocation requests.
package oracle

import (
	"context"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
)

// ToolSchema describes one callable tool in the shape the model expects:
// a name, a human description and a JSON Schema parameter object.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Decision is one reasoning step. Exactly one branch is populated: Calls
// when the model wants tools executed, Text when it produced the final
// answer for this turn.
type Decision struct {
	Text  string
	Calls []domain.ToolCall
}

// Final reports whether the decision ends the turn.
func (d *Decision) Final() bool { return len(d.Calls) == 0 }

// Client is the interface all reasoning providers implement.
type Client interface {
	// Decide runs one completion over the transcript and returns the
	// model's next step.
	Decide(ctx context.Context, transcript []domain.Message, tools []ToolSchema) (*Decision, error)

	// Model returns the configured model identifier.
	Model() string
}
