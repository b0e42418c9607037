package domain

import "time"

// Classification is the final decision bucket for one transaction.
type Classification string

const (
	ClassLegitimate Classification = "legitimate"
	ClassSuspicious Classification = "suspicious"
	ClassFraudulent Classification = "fraudulent"

	// ClassError is the sentinel classification for a transaction
	// that could not be analyzed (invalid input). Batch callers use
	// it to partition successes from failures deterministically.
	ClassError Classification = "error"
)

// Verdict is the final aggregated decision for one transaction.
// Created exactly once per analysis and never mutated afterwards.
type Verdict struct {
	ID     string `json:"id"`
	TxID   string `json:"txId"`
	UserID string `json:"userId"`

	// Score is the aggregate risk score in [0,1].
	Score float64 `json:"score"`

	Classification Classification `json:"classification"`

	// Confidence in [0,1], discounted per Miss.
	Confidence float64 `json:"confidence"`

	// Findings that contributed to the score, ordered by descending
	// severity regardless of detector completion order.
	Findings []Finding `json:"findings"`

	// Misses records every detector that did not report.
	Misses []Miss `json:"misses,omitempty"`

	// Degraded is set when misses exceeded the tolerance fraction;
	// the classification is then capped at suspicious.
	Degraded bool `json:"degraded"`

	// Explanation is filled by the explanation assembler, or left
	// empty when no rendering was requested.
	Explanation string `json:"explanation,omitempty"`

	// Error holds the rejection reason for ClassError verdicts.
	Error string `json:"error,omitempty"`

	Timestamp time.Time       `json:"timestamp"`
	Metadata  VerdictMetadata `json:"metadata"`
}

// VerdictMetadata carries processing information for audit trails.
type VerdictMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	DetectorsRun  int    `json:"detectorsRun"`
	DispatchMs    int64  `json:"dispatchMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// IsAlert reports whether the verdict warrants operator attention.
func (v *Verdict) IsAlert() bool {
	return v.Classification == ClassFraudulent || v.Classification == ClassSuspicious
}
