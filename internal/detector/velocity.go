package detector

import (
	"context"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// minVelocityHistory is the history size below which no velocity
// baseline exists and the detector reports Absent.
const minVelocityHistory = 5

// minVelocityThreshold floors the spike threshold so sparse baselines
// (a daily shopper) do not flag a single transaction as a spike.
const minVelocityThreshold = 3.0

// Velocity flags transaction-rate spikes against the user's own
// hourly baseline.
type Velocity struct {
	cfg domain.VelocityConfig
}

// NewVelocity creates the velocity-spike detector.
func NewVelocity(cfg domain.DetectorConfig) *Velocity {
	return &Velocity{cfg: cfg.Velocity}
}

func (d *Velocity) Name() string          { return domain.DetectorVelocity }
func (d *Velocity) RequiresHistory() bool { return true }

// Analyze compares the transaction count inside the recent window
// against the user's baseline rate scaled to the same window. Absent
// for histories too short to establish a baseline.
func (d *Velocity) Analyze(_ context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error) {
	if history.Stats.Count < minVelocityHistory {
		return nil, nil
	}

	recent := history.Within(tx.Timestamp, d.cfg.Window)
	count := float64(len(recent)) + 1 // include the current transaction

	hours := d.cfg.Window.Hours()
	baseline := history.Stats.HourlyMean * hours
	spread := history.Stats.HourlyStdDev * math.Sqrt(hours)
	threshold := math.Max(baseline+d.cfg.KFactor*spread, minVelocityThreshold)

	evidence := map[string]any{
		"count":      int(count),
		"window_sec": int(d.cfg.Window / time.Second),
		"baseline":   round2(baseline),
		"threshold":  round2(threshold),
	}

	if count <= threshold {
		return clear(d.Name(), 0.8, evidence), nil
	}

	excess := count - threshold
	severity := clamp01(0.4 + 0.6*math.Min(1, excess/(2*math.Max(1, threshold))))

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   severity,
		Confidence: 0.8,
		ReasonCode: domain.ReasonVelocitySpike,
		Evidence:   evidence,
	}, nil
}
