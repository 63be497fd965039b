package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsentGranted(t *testing.T) {
	var c Consent
	assert.False(t, c.Granted(), "zero value must not grant payment")

	c = Consent{State: ConsentNone}
	assert.False(t, c.Granted())

	c = Consent{State: ConsentGranted, GrantedAt: time.Now(), Scope: "card"}
	assert.True(t, c.Granted())
}

func TestToolResultContent(t *testing.T) {
	ok := ToolResult{CallID: "c1", ToolName: "booking__searchTours", OK: true, Payload: `{"tours":[]}`}
	assert.Equal(t, `{"tours":[]}`, ok.Content())

	failed := ToolResult{CallID: "c2", ToolName: "payment__processPayment", OK: false, Error: "consent required"}
	assert.JSONEq(t, `{"error":"consent required"}`, failed.Content())
}

func TestSessionTurnCounts(t *testing.T) {
	s := &Session{
		ID: "default",
		Messages: []Message{
			{Role: RoleAssistant, Content: "Hi! How can I help you plan your trip?"},
			{Role: RoleUser, Content: "Find tours to Goa"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "booking__searchTours"}}},
			{Role: RoleTool, CallID: "c1", Content: `{"tours":[]}`},
			{Role: RoleAssistant, Content: "No tours found."},
		},
	}

	assert.Equal(t, 1, s.UserTurns())
	assert.Equal(t, 3, s.AssistantTurns())
}
