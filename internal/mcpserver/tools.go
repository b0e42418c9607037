package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Kestrel MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeTransaction = mcp.NewTool("analyze_transaction",
	mcp.WithDescription(
		"Run a card transaction through the full fraud analysis pipeline. "+
			"Returns a verdict with classification (legitimate/suspicious/fraudulent), "+
			"risk score, confidence, and ranked findings with evidence. "+
			"The scored transaction is appended to the user's history."),
	mcp.WithObject("transaction",
		mcp.Required(),
		mcp.Description("Transaction to analyze: {\"id\": \"tx-1\", \"userId\": \"user-1\", \"amount\": 42.50, \"currency\": \"USD\", \"merchant\": \"Corner Market\", \"merchantCategory\": \"grocery\", \"timestamp\": \"2026-03-10T14:00:00Z\", \"location\": {\"lat\": 40.7, \"lon\": -74.0}}")),
)

var ToolScoreRisk = mcp.NewTool("score_risk",
	mcp.WithDescription(
		"Combine detector findings into an aggregate risk score and classification "+
			"without touching transaction history. Use this to ask 'what would the "+
			"engine decide given these signals'. Each finding needs a detector name, "+
			"severity in [0,1], and confidence in [0,1]."),
	mcp.WithArray("findings",
		mcp.Required(),
		mcp.Description("Findings to combine: [{\"detector\": \"card_testing\", \"severity\": 0.85, \"confidence\": 0.9}]")),
)

var ToolCheckMerchant = mcp.NewTool("check_merchant",
	mcp.WithDescription(
		"Screen a merchant against the blacklist and the category risk table. "+
			"Returns whether the merchant is blacklisted and the base risk for its category."),
	mcp.WithString("merchant",
		mcp.Required(),
		mcp.Description("Merchant name (e.g. 'QuickCash Advance LLC')")),
	mcp.WithString("category",
		mcp.Description("Merchant category (e.g. 'grocery', 'cryptocurrency', 'cash_advance')")),
)

var ToolDetectAnomalies = mcp.NewTool("detect_anomalies",
	mcp.WithDescription(
		"Summarize a user's spending profile and surface statistical anomalies: "+
			"amount distribution, category mix, active hours, and z-scores for recent "+
			"transactions. Read-only; does not modify history."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("User whose history to profile")),
	mcp.WithNumber("amount",
		mcp.Description("Optional hypothetical amount to score against the profile")),
)
