// Package mcpgw is the gateway between the agent loop and the MCP tool
// servers. It owns connection establishment with retry, tool discovery
// and namespacing, payment classification, and invocation with bounded
// timeouts. Tool failures never escape as errors: they come back as
// failed results the reasoning model can read and react to.
package mcpgw

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
	"github.com/deepakmehta1/travel-mcp-prod/internal/oracle"
)

// NameSeparator joins the server alias and the remote tool name into the
// namespaced name shown to the reasoning model, e.g. "booking__searchTours".
const NameSeparator = "__"

// ToolClass partitions tools by the safeguards they need.
type ToolClass string

const (
	// ClassGeneral tools run without ceremony.
	ClassGeneral ToolClass = "general"
	// ClassPayment tools move money and pass through the consent gate.
	ClassPayment ToolClass = "payment"
)

// RemoteTool is one discovered tool, namespaced and classified.
type RemoteTool struct {
	Name        string         // namespaced: <server><sep><remote>
	Remote      string         // name on the owning server
	Server      string         // server alias, e.g. "booking"
	Description string
	Parameters  map[string]any // JSON Schema object
	Class       ToolClass
}

// Conn is one live MCP server connection. The production implementation
// wraps the streamable HTTP client; tests substitute a stub.
type Conn interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer establishes a Conn to an MCP endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Options configures a Gateway.
type Options struct {
	// ConnectRetries is the number of connection attempts per server.
	ConnectRetries int
	// ConnectDelay is the pause between attempts.
	ConnectDelay time.Duration
	// InvokeTimeout bounds a single tool invocation.
	InvokeTimeout time.Duration
	// Dialer defaults to the streamable HTTP client.
	Dialer Dialer
	Logger *logging.Logger
}

// Gateway multiplexes tool discovery and invocation across the connected
// MCP servers.
type Gateway struct {
	opts Options
	log  *logging.Logger

	mu    sync.RWMutex
	conns map[string]Conn
	tools []RemoteTool
}

// New builds a gateway with no connections. Call Connect per server.
func New(opts Options) *Gateway {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = 1
	}
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = DialStreamableHTTP
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Gateway{
		opts:  opts,
		log:   log.Sub("mcpgw"),
		conns: map[string]Conn{},
	}
}

// Connect dials one server under an alias, retrying per the configured
// policy, then discovers its tools. Payment-aliased servers have every
// tool classified ClassPayment. Exhausting the retries returns an error
// wrapping ErrServerUnreachable; the gateway stays usable for the
// servers that did connect.
func (g *Gateway) Connect(ctx context.Context, alias, url string) error {
	var conn Conn
	var lastErr error
	for attempt := 1; attempt <= g.opts.ConnectRetries; attempt++ {
		c, err := g.opts.Dialer(ctx, url)
		if err == nil {
			conn = c
			break
		}
		lastErr = err
		g.log.Warn().Str("server", alias).Int("attempt", attempt).
			Int("max", g.opts.ConnectRetries).Err(err).Msg("connect failed")
		if attempt == g.opts.ConnectRetries {
			break
		}
		select {
		case <-time.After(g.opts.ConnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if conn == nil {
		return fmt.Errorf("%w: %s at %s: %v", domain.ErrServerUnreachable, alias, url, lastErr)
	}

	remote, err := conn.ListTools(ctx)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %s: list tools: %v", domain.ErrServerUnreachable, alias, err)
	}

	class := ClassGeneral
	if alias == "payment" {
		class = ClassPayment
	}
	discovered := make([]RemoteTool, 0, len(remote))
	for _, t := range remote {
		discovered = append(discovered, RemoteTool{
			Name:        alias + NameSeparator + t.Name,
			Remote:      t.Name,
			Server:      alias,
			Description: t.Description,
			Parameters:  schemaToMap(t.InputSchema),
			Class:       class,
		})
	}

	g.mu.Lock()
	if old, ok := g.conns[alias]; ok {
		old.Close()
		g.tools = withoutServer(g.tools, alias)
	}
	g.conns[alias] = conn
	g.tools = append(g.tools, discovered...)
	sort.Slice(g.tools, func(i, j int) bool { return g.tools[i].Name < g.tools[j].Name })
	g.mu.Unlock()

	g.log.Info().Str("server", alias).Int("tools", len(discovered)).Msg("connected")
	return nil
}

// Tools returns the discovered tools across all connected servers.
func (g *Gateway) Tools() []RemoteTool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]RemoteTool(nil), g.tools...)
}

// Schemas converts the discovered tools into the oracle's schema shape.
func (g *Gateway) Schemas() []oracle.ToolSchema {
	tools := g.Tools()
	out := make([]oracle.ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, oracle.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}

// Lookup finds a discovered tool by namespaced name.
func (g *Gateway) Lookup(name string) (RemoteTool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, t := range g.tools {
		if t.Name == name {
			return t, true
		}
	}
	return RemoteTool{}, false
}

// Connected reports whether a server alias has a live connection.
func (g *Gateway) Connected(alias string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.conns[alias]
	return ok
}

// Invoke routes one tool call to its server and returns a result the
// loop feeds back to the model. Every failure mode, including unknown
// tools, timeouts and transport errors, becomes a failed ToolResult
// rather than an error.
func (g *Gateway) Invoke(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	res := domain.ToolResult{CallID: call.ID, ToolName: call.Name}

	alias, remote, ok := strings.Cut(call.Name, NameSeparator)
	if !ok {
		res.Error = fmt.Sprintf("malformed tool name %q", call.Name)
		return res
	}
	g.mu.RLock()
	conn, up := g.conns[alias]
	g.mu.RUnlock()
	if !up {
		res.Error = fmt.Sprintf("no connected server for %q", alias)
		return res
	}

	cctx, cancel := context.WithTimeout(ctx, g.opts.InvokeTimeout)
	defer cancel()

	start := time.Now()
	out, err := conn.CallTool(cctx, remote, call.Arguments)
	elapsed := time.Since(start)
	if err != nil {
		g.log.Error().Str("tool", call.Name).Dur("elapsed", elapsed).Err(err).Msg("invocation failed")
		res.Error = fmt.Sprintf("tool invocation failed: %v", err)
		return res
	}

	text := resultText(out)
	if out.IsError {
		g.log.Warn().Str("tool", call.Name).Dur("elapsed", elapsed).Str("error", text).Msg("tool reported error")
		res.Error = text
		return res
	}
	g.log.Debug().Str("tool", call.Name).Dur("elapsed", elapsed).Msg("invoked")
	res.OK = true
	res.Payload = text
	return res
}

// Close tears down every connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for alias, conn := range g.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.conns, alias)
	}
	g.tools = nil
	return firstErr
}

func withoutServer(tools []RemoteTool, alias string) []RemoteTool {
	out := tools[:0]
	for _, t := range tools {
		if t.Server != alias {
			out = append(out, t)
		}
	}
	return out
}

func schemaToMap(s mcp.ToolInputSchema) map[string]any {
	m := map[string]any{"type": s.Type}
	if m["type"] == "" {
		m["type"] = "object"
	}
	props := map[string]any{}
	for k, v := range s.Properties {
		props[k] = v
	}
	m["properties"] = props
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// resultText concatenates the text content blocks of a tool result.
func resultText(r *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
