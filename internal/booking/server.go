package booking

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
	"github.com/deepakmehta1/travel-mcp-prod/internal/version"
)

// Server wraps an MCP server over a tour catalog.
type Server struct {
	catalog *Catalog
	mcp     *server.MCPServer
	log     *logging.Logger
}

// NewServer builds the MCP server and registers the booking tools.
func NewServer(catalog *Catalog, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		catalog: catalog,
		log:     log.Sub("booking"),
		mcp: server.NewMCPServer(
			"Travel Booking MCP Server",
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
	s.log.Info().Str("addr", addr).Msg("booking server listening")
	return server.NewStreamableHTTPServer(s.mcp).Start(addr)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("lookupCustomerByPhone",
		mcp.WithDescription("Look up a customer profile by phone number"),
		mcp.WithString("phone",
			mcp.Required(),
			mcp.Description("Customer phone number in international format"),
		),
	), s.handleLookupCustomer)

	s.mcp.AddTool(mcp.NewTool("searchTours",
		mcp.WithDescription("Search available tour packages by destination and budget"),
		mcp.WithString("destination",
			mcp.Description("Destination city, case-insensitive"),
		),
		mcp.WithNumber("budget",
			mcp.Description("Maximum price in INR"),
		),
	), s.handleSearchTours)

	s.mcp.AddTool(mcp.NewTool("bookTour",
		mcp.WithDescription("Book a tour package for a customer"),
		mcp.WithNumber("customer_id",
			mcp.Required(),
			mcp.Description("Customer identifier from lookupCustomerByPhone"),
		),
		mcp.WithString("tour_code",
			mcp.Required(),
			mcp.Description("Tour code from searchTours"),
		),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start date, YYYY-MM-DD"),
		),
		mcp.WithString("end_date",
			mcp.Required(),
			mcp.Description("End date, YYYY-MM-DD"),
		),
	), s.handleBookTour)

	s.mcp.AddTool(mcp.NewTool("listBookings",
		mcp.WithDescription("List a customer's bookings by phone number"),
		mcp.WithString("phone",
			mcp.Required(),
			mcp.Description("Customer phone number in international format"),
		),
	), s.handleListBookings)
}

func (s *Server) handleLookupCustomer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phone, err := req.RequireString("phone")
	if err != nil || phone == "" {
		return jsonResult(map[string]any{"found": false, "error": "INVALID_REQUEST"})
	}
	s.log.Info().Str("phone", phone).Msg("lookupCustomerByPhone")

	cust, ok := s.catalog.CustomerByPhone(phone)
	if !ok {
		return jsonResult(map[string]any{"found": false})
	}
	return jsonResult(map[string]any{"found": true, "customer": cust})
}

func (s *Server) handleSearchTours(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	destination := req.GetString("destination", "")
	budget := req.GetInt("budget", 0)
	if budget < 0 {
		return jsonResult(map[string]any{"tours": []any{}, "error": "INVALID_REQUEST"})
	}
	s.log.Info().Str("destination", destination).Int("budget", budget).Msg("searchTours")

	results := s.catalog.SearchTours(destination, budget)
	tours := make([]map[string]any, 0, len(results))
	for _, t := range results {
		tours = append(tours, map[string]any{
			"code":        t.Code,
			"name":        t.Name,
			"price":       t.BasePrice,
			"nights":      t.Nights,
			"destination": t.Destination,
		})
	}
	return jsonResult(map[string]any{"tours": tours})
}

func (s *Server) handleBookTour(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID := req.GetInt("customer_id", 0)
	tourCode := req.GetString("tour_code", "")
	startDate := req.GetString("start_date", "")
	endDate := req.GetString("end_date", "")

	if customerID < 1 || tourCode == "" {
		return jsonResult(map[string]any{"success": false, "error": "INVALID_REQUEST"})
	}
	if !validDate(startDate) || !validDate(endDate) {
		return jsonResult(map[string]any{"success": false, "error": "INVALID_DATE_FORMAT"})
	}
	s.log.Info().Int("customer_id", customerID).Str("tour_code", tourCode).Msg("bookTour")

	if _, ok := s.catalog.CustomerByID(customerID); !ok {
		return jsonResult(map[string]any{"success": false, "error": "CUSTOMER_NOT_FOUND"})
	}
	tour, ok := s.catalog.TourByCode(tourCode)
	if !ok {
		return jsonResult(map[string]any{"success": false, "error": "TOUR_NOT_FOUND"})
	}

	b := s.catalog.CreateBooking(customerID, tourCode, startDate, endDate, tour.BasePrice)
	s.log.Info().Int("booking_id", b.ID).Msg("booking created")
	return jsonResult(map[string]any{"success": true, "booking": b})
}

func (s *Server) handleListBookings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phone, err := req.RequireString("phone")
	if err != nil || phone == "" {
		return jsonResult(map[string]any{"bookings": []any{}, "error": "INVALID_REQUEST"})
	}
	s.log.Info().Str("phone", phone).Msg("listBookings")

	bookings := s.catalog.BookingsByPhone(phone)
	if bookings == nil {
		bookings = []map[string]any{}
	}
	return jsonResult(map[string]any{"bookings": bookings})
}

// jsonResult wraps a payload as a single text content block. Domain
// failures ride inside the payload; MCP-level errors are reserved for
// protocol problems.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
