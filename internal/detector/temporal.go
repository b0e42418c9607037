package detector

import (
	"context"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// TemporalAnomaly flags material transactions that fall outside the
// user's established active hours.
type TemporalAnomaly struct {
	cfg domain.TemporalConfig
}

// NewTemporalAnomaly creates the off-hours activity detector.
func NewTemporalAnomaly(cfg domain.DetectorConfig) *TemporalAnomaly {
	return &TemporalAnomaly{cfg: cfg.Temporal}
}

func (d *TemporalAnomaly) Name() string          { return domain.DetectorTemporalAnomaly }
func (d *TemporalAnomaly) RequiresHistory() bool { return true }

// Analyze checks the transaction hour against the user's active-hours
// envelope. Absent until enough history exists to establish one, and
// below the materiality floor small off-hours purchases pass clean.
func (d *TemporalAnomaly) Analyze(_ context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error) {
	active, established := history.ActiveHours(d.cfg.MinHistory, d.cfg.MinHourShare)
	if !established {
		return nil, nil
	}

	hour := tx.HourUTC()
	evidence := map[string]any{
		"hour":   hour,
		"amount": tx.Amount,
	}

	if active[hour] || tx.Amount < d.cfg.MinAmount {
		return clear(d.Name(), 0.7, evidence), nil
	}

	// Larger amounts in dead hours score higher; ten times the floor
	// saturates.
	amountFactor := math.Min(1, tx.Amount/(d.cfg.MinAmount*10))
	severity := clamp01(0.3 + 0.5*amountFactor)

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   severity,
		Confidence: 0.7,
		ReasonCode: domain.ReasonOffHoursActivity,
		Evidence:   evidence,
	}, nil
}
