// Package detector implements the fraud pattern detectors.
//
// Every detector is a pure function of (transaction, read-only history
// snapshot, configuration): no detector mutates shared state, and all
// are safely re-entrant. A detector reports one of three outcomes:
//
//   - a Finding with severity > 0: the pattern matched
//   - a Finding with severity 0 (ReasonClear): evaluated, nothing found
//   - nil, nil: Absent, meaning the pattern is not applicable to this input
//     (e.g. missing geolocation, history too thin for a baseline)
//
// Absent is distinct from a clear finding; the coordinator records it
// without affecting score or confidence.
package detector

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Detector analyzes one transaction against a history snapshot.
type Detector interface {
	// Name returns the detector's canonical name.
	Name() string

	// RequiresHistory reports whether the detector is meaningless
	// without user history. When the history store is unavailable,
	// history-dependent detectors are recorded as Misses instead of
	// being dispatched.
	RequiresHistory() bool

	// Analyze evaluates the transaction. Returning (nil, nil) means
	// Absent. An error becomes a Miss, never a partial Finding.
	Analyze(ctx context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clear builds the zero-severity "evaluated, nothing found" finding.
func clear(name string, confidence float64, evidence map[string]any) *domain.Finding {
	return &domain.Finding{
		Detector:   name,
		Severity:   0,
		Confidence: confidence,
		ReasonCode: domain.ReasonClear,
		Evidence:   evidence,
	}
}
