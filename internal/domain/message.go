// Package domain holds the conversation data model shared across the agent.
package domain

import (
	"encoding/json"
	"time"
)

// Role constants for transcript messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation transcript.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"` // populated when the oracle requested tools
	CallID    string     `json:"callId,omitempty"`    // for role=tool: the ToolCall this answers
	ToolName  string     `json:"toolName,omitempty"`  // for role=tool: the tool that produced it
	Timestamp time.Time  `json:"timestamp"`
}

// ToolCall is an oracle request to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of invoking one ToolCall. Invocation failures
// are represented here rather than as Go errors so the orchestration loop
// can feed them back to the oracle for recovery.
type ToolResult struct {
	CallID   string `json:"callId"`
	ToolName string `json:"toolName"`
	OK       bool   `json:"ok"`
	Payload  string `json:"payload,omitempty"` // JSON payload on success
	Error    string `json:"error,omitempty"`   // human-readable error otherwise
}

// Content returns the text that represents this result in the transcript.
func (r ToolResult) Content() string {
	if r.OK {
		return r.Payload
	}
	msg, _ := json.Marshal(map[string]string{"error": r.Error})
	return string(msg)
}
