package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all market tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("breachmarket", "1.0.0")
	client := NewMarketClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetProtocolRisk, h.HandleGetProtocolRisk)
	s.AddTool(ToolGetPrediction, h.HandleGetPrediction)
	s.AddTool(ToolGetOracleStats, h.HandleGetOracleStats)
	s.AddTool(ToolSubmitPrediction, h.HandleSubmitPrediction)
	s.AddTool(ToolResolvePrediction, h.HandleResolvePrediction)
	s.AddTool(ToolClaimRewards, h.HandleClaimRewards)
	s.AddTool(ToolEstimateReward, h.HandleEstimateReward)

	return s
}
