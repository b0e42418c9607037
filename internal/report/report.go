// Package report turns verdicts into ordered, structured reports and
// renders them as operator-facing text.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Assembler builds structured reports from verdicts. Assembly and
// rendering are pure; only Explain touches the network, through the
// optional advisor.
type Assembler struct {
	advisor domain.Advisor
	timeout timeoutFunc
	logger  *slog.Logger
}

type timeoutFunc func(ctx context.Context) (context.Context, context.CancelFunc)

// NewAssembler creates an assembler. A nil advisor disables prose
// rendering; Explain then always returns the structured fallback.
func NewAssembler(advisor domain.Advisor, cfg domain.AdvisorConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		advisor: advisor,
		timeout: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, cfg.Timeout)
		},
		logger: logger,
	}
}

// Assemble produces the structured report for a verdict. Reasons are
// ranked by severity; zero-severity findings are omitted since they
// carry no evidence of risk.
func (a *Assembler) Assemble(v *domain.Verdict) *domain.Report {
	r := &domain.Report{
		TxID:           v.TxID,
		UserID:         v.UserID,
		Classification: v.Classification,
		Score:          v.Score,
		Confidence:     v.Confidence,
		Degraded:       v.Degraded,
		Misses:         v.Misses,
	}

	rank := 1
	for _, f := range v.Findings {
		if f.Severity == 0 {
			continue
		}
		r.Reasons = append(r.Reasons, domain.ReportReason{
			Rank:       rank,
			Detector:   f.Detector,
			ReasonCode: f.ReasonCode,
			Severity:   f.Severity,
			Confidence: f.Confidence,
			Evidence:   f.Evidence,
		})
		rank++
	}
	return r
}

// Render produces the structured text fallback for a report.
func (a *Assembler) Render(r *domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Transaction %s classified %s (score %.2f, confidence %.2f)",
		r.TxID, r.Classification, r.Score, r.Confidence)
	if r.Degraded {
		b.WriteString(" [degraded: incomplete evidence]")
	}

	for _, reason := range r.Reasons {
		fmt.Fprintf(&b, "\n  %d. %s: %s (severity %.2f)",
			reason.Rank, reason.Detector, reason.ReasonCode, reason.Severity)
	}
	if len(r.Reasons) == 0 {
		b.WriteString("\n  no risk indicators found")
	}
	for _, m := range r.Misses {
		fmt.Fprintf(&b, "\n  missing: %s (%s)", m.Detector, m.Reason)
	}
	return b.String()
}

// Explain renders the report as prose through the advisor, falling
// back to the structured rendering when the advisor is absent, slow,
// or failing. Advisor failures are swallowed.
func (a *Assembler) Explain(ctx context.Context, r *domain.Report) string {
	if a.advisor == nil {
		return a.Render(r)
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	prose, err := a.advisor.Explain(ctx, r)
	if err != nil || prose == "" {
		if err != nil {
			a.logger.Warn("advisor failed, using structured fallback",
				"txId", r.TxID, "error", err)
		}
		return a.Render(r)
	}
	return prose
}
