// BreachMarket MCP Server - Exposes market capabilities as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/breachmarket/breachmarket/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:    envOrDefault("BREACHMARKET_API_URL", "http://localhost:8080"),
		Principal: os.Getenv("BREACHMARKET_PRINCIPAL"),
	}

	if cfg.Principal == "" {
		fmt.Fprintln(os.Stderr, "BREACHMARKET_PRINCIPAL is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
