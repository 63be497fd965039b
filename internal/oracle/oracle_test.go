package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
)

func TestDecisionFinal(t *testing.T) {
	assert.True(t, (&Decision{Text: "done"}).Final())
	assert.False(t, (&Decision{Calls: []domain.ToolCall{{Name: "booking__searchTours"}}}).Final())
}

func TestMockClientScript(t *testing.T) {
	m := &MockClient{Script: []*Decision{
		{Calls: []domain.ToolCall{{ID: "c1", Name: "booking__searchTours"}}},
		{Text: "here are your tours"},
	}}

	d, err := m.Decide(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, d.Final())

	d, err = m.Decide(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "here are your tours", d.Text)

	// exhausted script falls back to a canned answer
	d, err = m.Decide(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock answer", d.Text)

	assert.Len(t, m.Transcripts, 3)
}

// fakeCompletions serves a canned chat-completions response and captures
// the request body.
func fakeCompletions(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if captured != nil {
			var req map[string]any
			require.NoError(t, json.Unmarshal(raw, &req))
			*captured = req
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
}

func TestOpenAIDecideText(t *testing.T) {
	var captured map[string]any
	srv := fakeCompletions(t, http.StatusOK, `{
		"id": "cmpl-1",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Namaste! How can I help?"}}]
	}`, &captured)
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o"})
	d, err := c.Decide(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "You are a travel agent."},
		{Role: domain.RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, d.Final())
	assert.Equal(t, "Namaste! How can I help?", d.Text)

	assert.Equal(t, "gpt-4o", captured["model"])
	msgs, ok := captured["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAIDecideToolCalls(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, `{
		"id": "cmpl-2",
		"choices": [{"index": 0, "message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "booking__searchTours", "arguments": "{\"destination\": \"Goa\", \"budget\": 50000}"}
			}]
		}}]
	}`, nil)
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o"})
	d, err := c.Decide(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "tours to goa under 50k"},
	}, []ToolSchema{{
		Name:        "booking__searchTours",
		Description: "Search tour packages",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"destination": map[string]any{"type": "string"}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, d.Calls, 1)
	assert.Equal(t, "call_1", d.Calls[0].ID)
	assert.Equal(t, "booking__searchTours", d.Calls[0].Name)
	assert.Equal(t, "Goa", d.Calls[0].Arguments["destination"])
}

func TestOpenAIDecideMalformedArguments(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, `{
		"id": "cmpl-4",
		"choices": [{"index": 0, "message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "booking__searchTours", "arguments": "{not json"}
			}]
		}}]
	}`, nil)
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o"})
	d, err := c.Decide(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "tours to goa"},
	}, nil)

	// garbled arguments degrade to an empty-argument call the tool server
	// rejects, never a request-fatal error
	require.NoError(t, err)
	require.Len(t, d.Calls, 1)
	assert.Equal(t, "booking__searchTours", d.Calls[0].Name)
	assert.Empty(t, d.Calls[0].Arguments)
}

func TestOpenAIDecideSendsToolRoundTrip(t *testing.T) {
	var captured map[string]any
	srv := fakeCompletions(t, http.StatusOK, `{
		"id": "cmpl-3",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "booked"}}]
	}`, &captured)
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o"})
	_, err := c.Decide(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "book it"},
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{
			ID: "call_9", Name: "booking__bookTour",
			Arguments: map[string]any{"tour_code": "GOA-5D4N-OPT1"},
		}}},
		{Role: domain.RoleTool, CallID: "call_9", Content: `{"booking_id": "BK1001"}`},
	}, nil)
	require.NoError(t, err)

	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 3)

	asst := msgs[1].(map[string]any)
	calls := asst["tool_calls"].([]any)
	require.Len(t, calls, 1)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "booking__bookTour", fn["name"])

	toolMsg := msgs[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_9", toolMsg["tool_call_id"])
}

func TestOpenAIDecideRetriesThenUnavailable(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{
		APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o",
		Retries: 1, Backoff: time.Millisecond,
	})
	_, err := c.Decide(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	assert.GreaterOrEqual(t, hits, 2)
}
