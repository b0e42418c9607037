package domain

import "context"

// Report is the ordered, structured rendition of a Verdict produced
// by the explanation assembler. It is what operators (and the
// optional language-model advisor) consume; the Verdict itself stays
// authoritative.
type Report struct {
	TxID           string         `json:"txId"`
	UserID         string         `json:"userId"`
	Classification Classification `json:"classification"`
	Score          float64        `json:"score"`
	Confidence     float64        `json:"confidence"`
	Degraded       bool           `json:"degraded"`

	// Reasons are ranked by contribution, highest severity first.
	Reasons []ReportReason `json:"reasons"`

	// Misses lists detectors that did not report, so an operator can
	// see what evidence is absent.
	Misses []Miss `json:"misses,omitempty"`
}

// ReportReason is one ranked line of evidence in a report.
type ReportReason struct {
	Rank       int            `json:"rank"`
	Detector   string         `json:"detector"`
	ReasonCode string         `json:"reasonCode"`
	Severity   float64        `json:"severity"`
	Confidence float64        `json:"confidence"`
	Evidence   map[string]any `json:"evidence,omitempty"`
}

// Advisor renders a structured report as prose. Consumed optionally;
// a failing advisor never affects the verdict, only the explanation
// text, which falls back to the structured rendering.
type Advisor interface {
	Explain(ctx context.Context, report *Report) (string, error)
}
