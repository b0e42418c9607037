package scoring

import (
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testEngine() *Engine {
	return NewEngine(domain.DefaultConfig().Scoring)
}

func TestCombineEmpty(t *testing.T) {
	e := testEngine()

	out := e.Combine(nil, nil)
	if out.Score != 0 {
		t.Errorf("expected zero score, got %.3f", out.Score)
	}
	if out.Classification != domain.ClassLegitimate {
		t.Errorf("expected legitimate, got %s", out.Classification)
	}
	if out.Confidence != 1.0 {
		t.Errorf("expected full confidence with no findings and no misses, got %.3f", out.Confidence)
	}
}

func TestCombineSingleFinding(t *testing.T) {
	e := testEngine()

	out := e.Combine([]domain.Finding{
		{Detector: domain.DetectorCardTesting, Severity: 0.85, Confidence: 0.9, ReasonCode: domain.ReasonCardTestingBurst},
	}, nil)

	// 1 - (1 - 0.85*0.90) = 0.765
	if math.Abs(out.Score-0.765) > 1e-9 {
		t.Errorf("expected score 0.765, got %.4f", out.Score)
	}
	if out.Classification != domain.ClassFraudulent {
		t.Errorf("expected fraudulent at 0.765, got %s", out.Classification)
	}
}

func TestCombineOrderIndependent(t *testing.T) {
	e := testEngine()

	a := domain.Finding{Detector: domain.DetectorVelocity, Severity: 0.6, Confidence: 0.8}
	b := domain.Finding{Detector: domain.DetectorTemporalAnomaly, Severity: 0.4, Confidence: 0.7}
	c := domain.Finding{Detector: domain.DetectorMerchantScreen, Severity: 0.9, Confidence: 0.6}

	out1 := e.Combine([]domain.Finding{a, b, c}, nil)
	out2 := e.Combine([]domain.Finding{c, a, b}, nil)

	if out1.Score != out2.Score {
		t.Errorf("score depends on input order: %.6f vs %.6f", out1.Score, out2.Score)
	}
	if out1.Confidence != out2.Confidence {
		t.Errorf("confidence depends on input order")
	}
	for i := range out1.Findings {
		if out1.Findings[i].Detector != out2.Findings[i].Detector {
			t.Fatalf("sorted order differs at %d: %s vs %s", i, out1.Findings[i].Detector, out2.Findings[i].Detector)
		}
	}
}

func TestCombineMonotonic(t *testing.T) {
	e := testEngine()

	base := []domain.Finding{
		{Detector: domain.DetectorVelocity, Severity: 0.5, Confidence: 0.8},
	}
	more := append([]domain.Finding{
		{Detector: domain.DetectorTemporalAnomaly, Severity: 0.3, Confidence: 0.7},
	}, base...)

	low := e.Combine(base, nil)
	high := e.Combine(more, nil)

	if high.Score < low.Score {
		t.Errorf("adding a finding lowered the score: %.4f -> %.4f", low.Score, high.Score)
	}
	if high.Score > 1 {
		t.Errorf("score left [0,1]: %.4f", high.Score)
	}
}

func TestCombineSortsBySeverity(t *testing.T) {
	e := testEngine()

	out := e.Combine([]domain.Finding{
		{Detector: "b", Severity: 0.2, Confidence: 1},
		{Detector: "a", Severity: 0.9, Confidence: 1},
		{Detector: "c", Severity: 0.5, Confidence: 1},
	}, nil)

	want := []string{"a", "c", "b"}
	for i, f := range out.Findings {
		if f.Detector != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], f.Detector)
		}
	}
}

func TestClassificationThresholds(t *testing.T) {
	e := testEngine()

	cases := []struct {
		severity float64
		detector string
		want     domain.Classification
	}{
		{0.0, domain.DetectorGeoImpossible, domain.ClassLegitimate},
		{0.30, domain.DetectorGeoImpossible, domain.ClassLegitimate}, // 0.285
		{0.50, domain.DetectorGeoImpossible, domain.ClassSuspicious}, // 0.475
		{1.00, domain.DetectorGeoImpossible, domain.ClassFraudulent}, // 0.95
	}

	for _, tc := range cases {
		var findings []domain.Finding
		if tc.severity > 0 {
			findings = []domain.Finding{{Detector: tc.detector, Severity: tc.severity, Confidence: 1}}
		}
		out := e.Combine(findings, nil)
		if out.Classification != tc.want {
			t.Errorf("severity %.2f: expected %s, got %s (score %.3f)", tc.severity, tc.want, out.Classification, out.Score)
		}
	}
}

func TestMissPenalty(t *testing.T) {
	e := testEngine()

	misses := []domain.Miss{
		{Detector: domain.DetectorVelocity, Reason: domain.MissTimeout},
		{Detector: domain.DetectorGeoImpossible, Reason: domain.MissNoData},
	}

	out := e.Combine(nil, misses)
	if math.Abs(out.Confidence-0.8) > 1e-9 {
		t.Errorf("expected confidence 0.8 after two misses, got %.3f", out.Confidence)
	}
	if out.Score != 0 {
		t.Errorf("misses must not move the score, got %.3f", out.Score)
	}
}

func TestConfidenceFloor(t *testing.T) {
	e := testEngine()

	misses := make([]domain.Miss, 15)
	for i := range misses {
		misses[i] = domain.Miss{Detector: "d", Reason: domain.MissFailure}
	}

	out := e.Combine(nil, misses)
	if out.Confidence != 0 {
		t.Errorf("confidence must floor at zero, got %.3f", out.Confidence)
	}
}

func TestUnknownDetectorGetsDefaultWeight(t *testing.T) {
	e := testEngine()

	out := e.Combine([]domain.Finding{
		{Detector: "rule:custom-xyz", Severity: 1.0, Confidence: 1},
	}, nil)

	// Default weight 0.50.
	if math.Abs(out.Score-0.5) > 1e-9 {
		t.Errorf("expected score 0.5 with default weight, got %.3f", out.Score)
	}
}

func TestRegisterWeight(t *testing.T) {
	e := testEngine()
	e.RegisterWeight("rule:custom-xyz", 0.8)

	out := e.Combine([]domain.Finding{
		{Detector: "rule:custom-xyz", Severity: 1.0, Confidence: 1},
	}, nil)

	if math.Abs(out.Score-0.8) > 1e-9 {
		t.Errorf("expected registered weight 0.8 to apply, got %.3f", out.Score)
	}
}

func TestZeroSeverityFindingsDoNotScore(t *testing.T) {
	e := testEngine()

	out := e.Combine([]domain.Finding{
		{Detector: domain.DetectorVelocity, Severity: 0, Confidence: 0.8, ReasonCode: domain.ReasonClear},
		{Detector: domain.DetectorMerchantScreen, Severity: 0, Confidence: 0.9, ReasonCode: domain.ReasonClear},
	}, nil)

	if out.Score != 0 {
		t.Errorf("clear findings must not score, got %.3f", out.Score)
	}
	if out.Classification != domain.ClassLegitimate {
		t.Errorf("expected legitimate, got %s", out.Classification)
	}
	// Clear findings do not pull the confidence mean down.
	if out.Confidence != 1.0 {
		t.Errorf("expected full confidence for an all-clear set, got %.3f", out.Confidence)
	}
}
