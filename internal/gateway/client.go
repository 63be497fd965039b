package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/deepakmehta1/travel-mcp-prod/internal/stream"
)

// Client talks to a running gateway. Used by the CLI and by automation
// against a deployed agent.
type Client struct {
	base    string
	session string
	http    *http.Client
}

// NewClient creates a client for the gateway at base (e.g.
// "http://localhost:8000"). A non-empty session id partitions the
// conversation; empty means the shared default session.
func NewClient(base, session string) *Client {
	return &Client{
		base:    strings.TrimRight(base, "/"),
		session: session,
		http:    &http.Client{Timeout: queryTimeout},
	}
}

// Health checks the gateway and returns the configured model name.
func (c *Client) Health(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("health check returned %s", resp.Status)
	}
	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return "", fmt.Errorf("decoding health response: %w", err)
	}
	return h.Model, nil
}

// Query sends one utterance and returns the complete answer.
func (c *Client) Query(ctx context.Context, question string) (string, error) {
	body, _ := json.Marshal(QueryRequest{Query: question})
	resp, err := c.do(ctx, http.MethodPost, "/query", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var qr QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return "", fmt.Errorf("decoding query response: %w", err)
	}
	if !qr.Success {
		if qr.Error != "" {
			return "", fmt.Errorf("agent error: %s", qr.Error)
		}
		return "", fmt.Errorf("agent error: %s", resp.Status)
	}
	return qr.Response, nil
}

// StreamQuery sends one utterance and invokes onChunk for every answer
// chunk as it arrives, returning the reassembled answer. If the stream
// cannot be established it falls back to a plain Query and delivers the
// whole answer as a single chunk.
func (c *Client) StreamQuery(ctx context.Context, question string, onChunk func(string)) (string, error) {
	body, _ := json.Marshal(QueryRequest{Query: question})
	resp, err := c.do(ctx, http.MethodPost, "/stream-query", bytes.NewReader(body))
	if err != nil {
		return c.fallback(ctx, question, onChunk)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK ||
		!strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		io.Copy(io.Discard, resp.Body)
		return c.fallback(ctx, question, onChunk)
	}

	var full strings.Builder
	r := stream.NewReader(resp.Body)
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			return full.String(), nil
		}
		if err != nil {
			// mid-stream failure: the fallback answer replaces the partial one
			return c.fallback(ctx, question, onChunk)
		}
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
}

// Reset clears the conversation.
func (c *Client) Reset(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/reset", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("reset returned %s", resp.Status)
	}
	return nil
}

func (c *Client) fallback(ctx context.Context, question string, onChunk func(string)) (string, error) {
	answer, err := c.Query(ctx, question)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		onChunk(answer)
	}
	return answer, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set("X-Session-ID", c.session)
	}
	return c.http.Do(req)
}
