// Package scoring implements the risk combination rule that turns a
// set of detector findings into an aggregate score, classification,
// and confidence.
package scoring

import (
	"math"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine applies the weighted noisy-OR combination rule. Weights and
// thresholds are fixed at construction; the engine is safe for
// concurrent use.
type Engine struct {
	weights       map[string]float64
	defaultWeight float64

	fraudulentAt float64
	suspiciousAt float64
	missPenalty  float64
}

// NewEngine creates a scoring engine from configuration. The weight
// map is copied so later registration cannot race with scoring.
func NewEngine(cfg domain.ScoringConfig) *Engine {
	weights := make(map[string]float64, len(cfg.Weights))
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	return &Engine{
		weights:       weights,
		defaultWeight: cfg.DefaultWeight,
		fraudulentAt:  cfg.FraudulentThreshold,
		suspiciousAt:  cfg.SuspiciousThreshold,
		missPenalty:   cfg.MissPenalty,
	}
}

// RegisterWeight sets the weight for a detector name. Called during
// wiring for custom rules carrying their own weight; not safe to call
// concurrently with Combine.
func (e *Engine) RegisterWeight(detector string, weight float64) {
	e.weights[detector] = weight
}

// Weight returns the configured weight for a detector, falling back
// to the default for unknown names.
func (e *Engine) Weight(detector string) float64 {
	if w, ok := e.weights[detector]; ok {
		return w
	}
	return e.defaultWeight
}

// Outcome is the result of combining one request's findings.
type Outcome struct {
	Score          float64
	Classification domain.Classification
	Confidence     float64

	// Findings is the input set sorted by descending severity, ties
	// broken by detector name for determinism.
	Findings []domain.Finding
}

// Combine folds findings and misses into a single outcome. Each
// finding contributes independently: the aggregate is one minus the
// product of the per-finding survival terms, so any single
// high-severity finding dominates and extra findings only push the
// score up. The result is independent of input order.
func (e *Engine) Combine(findings []domain.Finding, misses []domain.Miss) Outcome {
	sorted := make([]domain.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity != sorted[j].Severity {
			return sorted[i].Severity > sorted[j].Severity
		}
		return sorted[i].Detector < sorted[j].Detector
	})

	survival := 1.0
	for _, f := range sorted {
		contribution := clamp01(f.Severity * e.Weight(f.Detector))
		survival *= 1 - contribution
	}
	score := 1 - survival

	outcome := Outcome{
		Score:          score,
		Classification: e.classify(score),
		Confidence:     e.confidence(sorted, misses),
		Findings:       sorted,
	}
	return outcome
}

func (e *Engine) classify(score float64) domain.Classification {
	switch {
	case score >= e.fraudulentAt:
		return domain.ClassFraudulent
	case score >= e.suspiciousAt:
		return domain.ClassSuspicious
	default:
		return domain.ClassLegitimate
	}
}

// confidence is the mean confidence of the scoring findings,
// discounted per miss. Zero-severity findings do not pull the mean:
// with nothing found, the base is full confidence, since every
// detector that reported agreed there was nothing to find.
func (e *Engine) confidence(findings []domain.Finding, misses []domain.Miss) float64 {
	var sum float64
	var n int
	for _, f := range findings {
		if f.Severity > 0 {
			sum += f.Confidence
			n++
		}
	}
	base := 1.0
	if n > 0 {
		base = sum / float64(n)
	}
	return math.Max(0, base-e.missPenalty*float64(len(misses)))
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
