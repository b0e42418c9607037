package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/opensource-finance/kestrel/internal/coordinator"
	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// NewMCPServer creates a configured MCP server with all Kestrel tools registered.
func NewMCPServer(c *coordinator.Coordinator, history domain.HistoryStore, scorer *scoring.Engine, merchant *detector.MerchantScreening, version string) *server.MCPServer {
	s := server.NewMCPServer("kestrel", version)
	h := NewHandlers(c, history, scorer, merchant)

	s.AddTool(ToolAnalyzeTransaction, h.HandleAnalyzeTransaction)
	s.AddTool(ToolScoreRisk, h.HandleScoreRisk)
	s.AddTool(ToolCheckMerchant, h.HandleCheckMerchant)
	s.AddTool(ToolDetectAnomalies, h.HandleDetectAnomalies)

	return s
}
