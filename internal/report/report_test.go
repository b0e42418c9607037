package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func sampleVerdict() *domain.Verdict {
	return &domain.Verdict{
		ID:             "v-1",
		TxID:           "tx-1",
		UserID:         "user-1",
		Score:          0.82,
		Classification: domain.ClassFraudulent,
		Confidence:     0.9,
		Findings: []domain.Finding{
			{Detector: domain.DetectorGeoImpossible, Severity: 0.9, Confidence: 0.95, ReasonCode: domain.ReasonImpossibleTravel},
			{Detector: domain.DetectorVelocity, Severity: 0.5, Confidence: 0.8, ReasonCode: domain.ReasonVelocitySpike},
			{Detector: domain.DetectorMerchantScreen, Severity: 0, Confidence: 0.9, ReasonCode: domain.ReasonClear},
		},
		Misses: []domain.Miss{
			{Detector: domain.DetectorCategoryAnomaly, Reason: domain.MissTimeout},
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestAssembleRanksReasons(t *testing.T) {
	a := NewAssembler(nil, domain.DefaultConfig().Advisor, nil)

	r := a.Assemble(sampleVerdict())
	if len(r.Reasons) != 2 {
		t.Fatalf("expected 2 reasons, clear findings excluded; got %d", len(r.Reasons))
	}
	if r.Reasons[0].Detector != domain.DetectorGeoImpossible || r.Reasons[0].Rank != 1 {
		t.Errorf("highest severity must rank first, got %+v", r.Reasons[0])
	}
	if r.Reasons[1].Rank != 2 {
		t.Errorf("ranks must be sequential, got %d", r.Reasons[1].Rank)
	}
	if len(r.Misses) != 1 {
		t.Errorf("misses must carry through, got %d", len(r.Misses))
	}
}

func TestRenderStructuredText(t *testing.T) {
	a := NewAssembler(nil, domain.DefaultConfig().Advisor, nil)

	text := a.Render(a.Assemble(sampleVerdict()))
	for _, want := range []string{"tx-1", "fraudulent", "impossible_travel", "missing: category_anomaly"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendering missing %q:\n%s", want, text)
		}
	}
}

func TestRenderCleanVerdict(t *testing.T) {
	a := NewAssembler(nil, domain.DefaultConfig().Advisor, nil)

	v := &domain.Verdict{TxID: "tx-2", Classification: domain.ClassLegitimate, Confidence: 1}
	text := a.Render(a.Assemble(v))
	if !strings.Contains(text, "no risk indicators found") {
		t.Errorf("clean rendering missing indicator line:\n%s", text)
	}
}

type stubAdvisor struct {
	prose string
	err   error
}

func (s *stubAdvisor) Explain(context.Context, *domain.Report) (string, error) {
	return s.prose, s.err
}

func TestExplainUsesAdvisor(t *testing.T) {
	a := NewAssembler(&stubAdvisor{prose: "looks like card fraud"}, domain.DefaultConfig().Advisor, nil)

	got := a.Explain(context.Background(), a.Assemble(sampleVerdict()))
	if got != "looks like card fraud" {
		t.Errorf("expected advisor prose, got %q", got)
	}
}

func TestExplainFallsBackOnAdvisorFailure(t *testing.T) {
	a := NewAssembler(&stubAdvisor{err: errors.New("unreachable")}, domain.DefaultConfig().Advisor, nil)

	got := a.Explain(context.Background(), a.Assemble(sampleVerdict()))
	if !strings.Contains(got, "classified fraudulent") {
		t.Errorf("expected structured fallback, got %q", got)
	}
}

func TestExplainWithoutAdvisor(t *testing.T) {
	a := NewAssembler(nil, domain.DefaultConfig().Advisor, nil)

	got := a.Explain(context.Background(), a.Assemble(sampleVerdict()))
	if !strings.Contains(got, "tx-1") {
		t.Errorf("expected structured rendering, got %q", got)
	}
}
