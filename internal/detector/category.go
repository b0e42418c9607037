package detector

import (
	"context"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// rareCategoryShare is the share of history below which a merchant
// category counts as novel for the user.
const rareCategoryShare = 0.02

// CategoryAnomaly flags large transactions in merchant categories the
// user has little or no history with.
type CategoryAnomaly struct {
	cfg domain.CategoryConfig
}

// NewCategoryAnomaly creates the merchant-category anomaly detector.
func NewCategoryAnomaly(cfg domain.DetectorConfig) *CategoryAnomaly {
	return &CategoryAnomaly{cfg: cfg.Category}
}

func (d *CategoryAnomaly) Name() string          { return domain.DetectorCategoryAnomaly }
func (d *CategoryAnomaly) RequiresHistory() bool { return true }

// Analyze fires when the transaction category is rare for the user
// and the amount sits above the user's 90th percentile. Absent for
// profiles below the minimum history size.
func (d *CategoryAnomaly) Analyze(_ context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error) {
	if history.Stats.Count < d.cfg.MinHistory {
		return nil, nil
	}

	share := float64(history.Stats.CategoryCounts[tx.MerchantCategory]) / float64(history.Stats.Count)

	// z-score of the amount against the user's mean, for evidence;
	// the firing decision uses the P90 which is robust to skew.
	var z float64
	if history.Stats.StdDevAmount > 0 {
		z = (tx.Amount - history.Stats.MeanAmount) / history.Stats.StdDevAmount
	}

	evidence := map[string]any{
		"category":       tx.MerchantCategory,
		"category_share": round2(share),
		"amount":         tx.Amount,
		"p90_amount":     round2(history.Stats.P90Amount),
		"z_score":        round2(z),
	}

	if share >= rareCategoryShare || tx.Amount <= history.Stats.P90Amount {
		return clear(d.Name(), 0.75, evidence), nil
	}

	// How far above P90 the amount sits drives severity; double the
	// P90 saturates the scale.
	var over float64
	if history.Stats.P90Amount > 0 {
		over = (tx.Amount - history.Stats.P90Amount) / history.Stats.P90Amount
	} else {
		over = 1
	}
	severity := clamp01(0.4 + 0.4*math.Min(1, over))

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   severity,
		Confidence: 0.75,
		ReasonCode: domain.ReasonCategoryAnomaly,
		Evidence:   evidence,
	}, nil
}
