package coordinator

import (
	"context"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// patternTools are the detectors grouped under the pattern
// specialist; everything else reports to the risk specialist.
var patternTools = map[string]bool{
	domain.DetectorCardTesting:   true,
	domain.DetectorGeoImpossible: true,
	domain.DetectorVelocity:      true,
}

// runSpecialists runs detectors grouped into two specialist units.
// Each unit combines its own findings into a sub-aggregate finding,
// and the top-level combination sees only the sub-aggregates. Misses
// stay global so degradation accounting is unchanged.
func (c *Coordinator) runSpecialists(ctx context.Context, tx *domain.Transaction, snapshot *domain.ProfileSnapshot, historyOK bool) ([]domain.Finding, []domain.Miss) {
	var pattern, risk []string
	for _, tool := range c.executor.Tools() {
		if patternTools[tool] {
			pattern = append(pattern, tool)
		} else {
			risk = append(risk, tool)
		}
	}

	type unit struct {
		name  string
		tools []string
	}
	units := []unit{
		{domain.SpecialistPattern, pattern},
		{domain.SpecialistRisk, risk},
	}

	var findings []domain.Finding
	var misses []domain.Miss
	for _, u := range units {
		if len(u.tools) == 0 {
			continue
		}

		subFindings, subMisses := c.runDetectors(ctx, u.tools, tx, snapshot, historyOK)
		misses = append(misses, subMisses...)

		sub := c.scorer.Combine(subFindings, nil)
		if sub.Score == 0 {
			continue
		}

		var contributing []string
		for _, f := range sub.Findings {
			if f.Severity > 0 {
				contributing = append(contributing, f.Detector)
			}
		}

		findings = append(findings, domain.Finding{
			Detector:   u.name,
			Severity:   sub.Score,
			Confidence: sub.Confidence,
			ReasonCode: domain.ReasonSubAggregate,
			Evidence: map[string]any{
				"detectors": strings.Join(contributing, ","),
			},
		})
	}
	return findings, misses
}
