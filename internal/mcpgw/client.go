package mcpgw

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/deepakmehta1/travel-mcp-prod/internal/version"
)

// httpConn wraps the streamable HTTP MCP client.
type httpConn struct {
	c *client.Client
}

// DialStreamableHTTP connects to an MCP endpoint over streamable HTTP
// and runs the initialize handshake. It is the default Dialer.
func DialStreamableHTTP(ctx context.Context, url string) (Conn, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", url, err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport for %s: %w", url, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "travel-agent",
		Version: version.Version,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize %s: %w", url, err)
	}
	return &httpConn{c: c}, nil
}

func (h *httpConn) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := h.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

func (h *httpConn) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return h.c.CallTool(ctx, req)
}

func (h *httpConn) Close() error {
	return h.c.Close()
}
