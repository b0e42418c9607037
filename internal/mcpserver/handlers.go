package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opensource-finance/kestrel/internal/coordinator"
	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Handlers holds the handler functions for each MCP tool. All tools
// call the same deterministic core the HTTP API uses; nothing here
// makes its own decisions.
type Handlers struct {
	coordinator *coordinator.Coordinator
	history     domain.HistoryStore
	scorer      *scoring.Engine
	merchant    *detector.MerchantScreening
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(c *coordinator.Coordinator, history domain.HistoryStore, scorer *scoring.Engine, merchant *detector.MerchantScreening) *Handlers {
	return &Handlers{
		coordinator: c,
		history:     history,
		scorer:      scorer,
		merchant:    merchant,
	}
}

// HandleAnalyzeTransaction runs the full pipeline on one transaction.
func (h *Handlers) HandleAnalyzeTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetArguments()["transaction"]
	if raw == nil {
		return mcp.NewToolResultError("transaction is required"), nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unreadable transaction: %v", err)), nil
	}
	var tx domain.Transaction
	if err := json.Unmarshal(encoded, &tx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("malformed transaction: %v", err)), nil
	}

	verdict, err := h.coordinator.Analyze(ctx, &tx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis rejected: %v", err)), nil
	}

	return mcp.NewToolResultText(formatVerdict(verdict)), nil
}

// HandleScoreRisk combines caller-supplied findings through the
// scoring engine without touching history.
func (h *Handlers) HandleScoreRisk(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetArguments()["findings"]
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return mcp.NewToolResultError("findings must be a non-empty array"), nil
	}

	findings := make([]domain.Finding, 0, len(items))
	for i, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("finding %d unreadable: %v", i, err)), nil
		}
		var f domain.Finding
		if err := json.Unmarshal(encoded, &f); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("finding %d malformed: %v", i, err)), nil
		}
		if f.Detector == "" {
			return mcp.NewToolResultError(fmt.Sprintf("finding %d is missing a detector name", i)), nil
		}
		if f.Severity < 0 || f.Severity > 1 || f.Confidence < 0 || f.Confidence > 1 {
			return mcp.NewToolResultError(fmt.Sprintf("finding %d has severity or confidence outside [0,1]", i)), nil
		}
		findings = append(findings, f)
	}

	outcome := h.scorer.Combine(findings, nil)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Classification: %s\n", outcome.Classification)
	fmt.Fprintf(&sb, "Score: %.3f\n", outcome.Score)
	fmt.Fprintf(&sb, "Confidence: %.3f\n\n", outcome.Confidence)
	sb.WriteString("Contributions (severity x weight):\n")
	for _, f := range outcome.Findings {
		fmt.Fprintf(&sb, "  %s: %.3f x %.2f = %.3f\n",
			f.Detector, f.Severity, h.scorer.Weight(f.Detector), f.Severity*h.scorer.Weight(f.Detector))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCheckMerchant screens one merchant/category pair.
func (h *Handlers) HandleCheckMerchant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merchant := req.GetString("merchant", "")
	if merchant == "" {
		return mcp.NewToolResultError("merchant is required"), nil
	}
	category := req.GetString("category", "")

	// The merchant detector is history-free, so a synthetic transaction
	// is enough to exercise it.
	tx := &domain.Transaction{
		ID:               "mcp-screen",
		UserID:           "mcp-screen",
		Amount:           1,
		Merchant:         merchant,
		MerchantCategory: category,
	}
	finding, err := h.merchant.Analyze(ctx, tx, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("screening failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Merchant: %s\n", merchant)
	if category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", category)
	}
	switch {
	case finding == nil || finding.Severity == 0:
		sb.WriteString("Status: clean\n")
	case finding.ReasonCode == domain.ReasonMerchantBlacklist:
		sb.WriteString("Status: BLACKLISTED\n")
	default:
		fmt.Fprintf(&sb, "Status: high-risk category (risk %.2f)\n", finding.Severity)
	}
	if finding != nil {
		fmt.Fprintf(&sb, "Severity: %.2f, confidence: %.2f\n", finding.Severity, finding.Confidence)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleDetectAnomalies summarizes a user's spending profile.
func (h *Handlers) HandleDetectAnomalies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	profile, err := h.history.GetProfile(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history unavailable: %v", err)), nil
	}
	snapshot := profile.Snapshot()
	stats := snapshot.Stats

	var sb strings.Builder
	fmt.Fprintf(&sb, "Profile for %s: %d transactions\n", userID, stats.Count)
	if stats.Count == 0 {
		sb.WriteString("No history; nothing to profile.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	fmt.Fprintf(&sb, "Amounts: mean %.2f, stddev %.2f, p90 %.2f\n",
		stats.MeanAmount, stats.StdDevAmount, stats.P90Amount)

	sb.WriteString("Categories:")
	for cat, n := range stats.CategoryCounts {
		fmt.Fprintf(&sb, " %s=%d", cat, n)
	}
	sb.WriteString("\n")

	if amount := req.GetFloat("amount", 0); amount > 0 && stats.StdDevAmount > 0 {
		z := (amount - stats.MeanAmount) / stats.StdDevAmount
		anomaly := z / 3
		if anomaly > 1 {
			anomaly = 1
		}
		if anomaly < 0 {
			anomaly = 0
		}
		fmt.Fprintf(&sb, "Hypothetical amount %.2f: z-score %.2f, anomaly score %.2f\n",
			amount, z, anomaly)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func formatVerdict(v *domain.Verdict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Verdict %s for transaction %s\n", v.ID, v.TxID)
	fmt.Fprintf(&sb, "Classification: %s\n", v.Classification)
	fmt.Fprintf(&sb, "Score: %.3f, confidence: %.3f\n", v.Score, v.Confidence)
	if v.Degraded {
		sb.WriteString("DEGRADED: incomplete detector coverage, treat with caution\n")
	}

	if len(v.Findings) > 0 {
		sb.WriteString("\nFindings:\n")
		for _, f := range v.Findings {
			if f.Severity == 0 {
				continue
			}
			fmt.Fprintf(&sb, "  [%.2f] %s (%s, confidence %.2f)\n",
				f.Severity, f.Detector, f.ReasonCode, f.Confidence)
		}
	}
	if len(v.Misses) > 0 {
		sb.WriteString("\nMissing evidence:\n")
		for _, m := range v.Misses {
			fmt.Fprintf(&sb, "  %s: %s (%s)\n", m.Detector, m.Reason, m.Detail)
		}
	}
	if v.Explanation != "" {
		fmt.Fprintf(&sb, "\n%s\n", v.Explanation)
	}
	return sb.String()
}
