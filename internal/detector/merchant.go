package detector

import (
	"context"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// defaultCategoryRisk applies to merchant categories with no entry in
// the configured risk table.
const defaultCategoryRisk = 0.5

// MerchantScreening checks the merchant against a blacklist and a
// category risk table. It needs no user history.
type MerchantScreening struct {
	cfg       domain.MerchantConfig
	blacklist map[string]struct{}
}

// NewMerchantScreening creates the merchant screening detector.
func NewMerchantScreening(cfg domain.DetectorConfig) *MerchantScreening {
	bl := make(map[string]struct{}, len(cfg.Merchant.Blacklist))
	for _, m := range cfg.Merchant.Blacklist {
		bl[strings.ToLower(m)] = struct{}{}
	}
	return &MerchantScreening{cfg: cfg.Merchant, blacklist: bl}
}

func (d *MerchantScreening) Name() string          { return domain.DetectorMerchantScreen }
func (d *MerchantScreening) RequiresHistory() bool { return false }

// Analyze screens the merchant name against the blacklist, then the
// category against the risk table. Blacklist hits are definitive.
func (d *MerchantScreening) Analyze(_ context.Context, tx *domain.Transaction, _ *domain.ProfileSnapshot) (*domain.Finding, error) {
	if _, hit := d.blacklist[strings.ToLower(tx.Merchant)]; hit {
		return &domain.Finding{
			Detector:   d.Name(),
			Severity:   1.0,
			Confidence: 0.95,
			ReasonCode: domain.ReasonMerchantBlacklist,
			Evidence:   map[string]any{"merchant": tx.Merchant},
		}, nil
	}

	risk, ok := d.cfg.CategoryRisk[tx.MerchantCategory]
	if !ok {
		risk = defaultCategoryRisk
	}

	evidence := map[string]any{
		"merchant":      tx.Merchant,
		"category":      tx.MerchantCategory,
		"category_risk": risk,
	}

	if risk < d.cfg.RiskFloor {
		return clear(d.Name(), 0.9, evidence), nil
	}

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   clamp01(risk),
		Confidence: 0.6,
		ReasonCode: domain.ReasonMerchantHighRisk,
		Evidence:   evidence,
	}, nil
}
