package main

import (
	"fmt"
	"os"

	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
	"github.com/deepakmehta1/travel-mcp-prod/internal/payment"
)

func main() {
	log := logging.New(nil, envOr("LOG_LEVEL", "info"))

	addr := fmt.Sprintf("%s:%s", envOr("MCP_HOST", "0.0.0.0"), envOr("MCP_PORT", "9002"))
	srv := payment.NewServer(log)
	if err := srv.Serve(addr); err != nil {
		log.Error().Err(err).Msg("payment server stopped")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
