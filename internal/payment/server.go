// Package payment implements the payment tool server. It refuses to
// process a charge unless the caller asserts explicit customer consent.
package payment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
	"github.com/deepakmehta1/travel-mcp-prod/internal/version"
)

// Receipt is the record returned for a successful charge.
type Receipt struct {
	PaymentID  string `json:"payment_id"`
	CustomerID int    `json:"customer_id"`
	Amount     int    `json:"amount"`
	Currency   string `json:"currency"`
	Method     string `json:"method"`
	Status     string `json:"status"`
	PaidAt     string `json:"paid_at"`
}

// Server wraps an MCP server exposing processPayment.
type Server struct {
	mcp *server.MCPServer
	log *logging.Logger

	// now is overridable in tests
	now func() time.Time
}

// NewServer builds the MCP server and registers the payment tool.
func NewServer(log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		log: log.Sub("payment"),
		now: time.Now,
		mcp: server.NewMCPServer(
			"Payment Agent MCP Server",
			version.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCP exposes the underlying server for transport wiring.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve runs the streamable HTTP transport on addr, endpoint /mcp.
func (s *Server) Serve(addr string) error {
	s.log.Info().Str("addr", addr).Msg("payment server listening")
	return server.NewStreamableHTTPServer(s.mcp).Start(addr)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("processPayment",
		mcp.WithDescription("Charge a customer for a booking. Requires explicit customer consent."),
		mcp.WithNumber("customer_id",
			mcp.Required(),
			mcp.Description("Customer identifier"),
		),
		mcp.WithNumber("amount",
			mcp.Required(),
			mcp.Description("Amount in the smallest display unit, e.g. whole INR"),
		),
		mcp.WithString("currency",
			mcp.Description("ISO currency code, default INR"),
		),
		mcp.WithString("method",
			mcp.Description("Payment method, default card"),
		),
		mcp.WithBoolean("consent",
			mcp.Description("Whether the customer explicitly consented to this charge"),
		),
	), s.handleProcessPayment)
}

func (s *Server) handleProcessPayment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID := req.GetInt("customer_id", 0)
	amount := req.GetInt("amount", 0)
	currency := req.GetString("currency", "INR")
	method := req.GetString("method", "card")
	consent := req.GetBool("consent", false)

	if customerID < 1 || amount < 1 || len(currency) != 3 || len(method) < 2 {
		return jsonResult(map[string]any{"success": false, "error": "INVALID_REQUEST"})
	}

	if !consent {
		s.log.Info().Int("customer_id", customerID).Msg("payment consent missing")
		return jsonResult(map[string]any{"success": false, "error": "CONSENT_REQUIRED"})
	}

	receipt := Receipt{
		PaymentID:  "pay_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		CustomerID: customerID,
		Amount:     amount,
		Currency:   currency,
		Method:     method,
		Status:     "PAID",
		PaidAt:     s.now().UTC().Format(time.RFC3339),
	}

	s.log.Info().Str("payment_id", receipt.PaymentID).Int("amount", amount).Msg("payment processed")
	return jsonResult(map[string]any{"success": true, "receipt": receipt})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
