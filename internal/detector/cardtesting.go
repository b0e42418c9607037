package detector

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CardTesting flags bursts of small-amount transactions in the same
// merchant category: the classic probe pattern used to validate a
// stolen card before a real purchase.
type CardTesting struct {
	cfg domain.CardTestingConfig
}

// NewCardTesting creates the card-testing detector.
func NewCardTesting(cfg domain.DetectorConfig) *CardTesting {
	return &CardTesting{cfg: cfg.CardTesting}
}

func (d *CardTesting) Name() string          { return domain.DetectorCardTesting }
func (d *CardTesting) RequiresHistory() bool { return true }

// Analyze counts small-amount transactions for the current
// transaction's merchant category within the burst window ending at
// the current timestamp, including the current transaction itself.
func (d *CardTesting) Analyze(_ context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error) {
	window := history.Within(tx.Timestamp, d.cfg.Window)

	count := 0
	var amountSum float64
	for _, h := range window {
		if h.ID == tx.ID {
			continue
		}
		if h.MerchantCategory == tx.MerchantCategory && h.Amount <= d.cfg.MaxAmount {
			count++
			amountSum += h.Amount
		}
	}
	if tx.Amount <= d.cfg.MaxAmount {
		count++
		amountSum += tx.Amount
	}

	evidence := map[string]any{
		"count":      count,
		"window_sec": int(d.cfg.Window.Seconds()),
		"category":   tx.MerchantCategory,
	}

	if count < d.cfg.MinCount {
		return clear(d.Name(), 1.0, evidence), nil
	}

	avg := amountSum / float64(count)
	evidence["avg_amount"] = avg

	// Severity grows with the burst size above the trigger count and
	// shrinks toward the small-amount ceiling.
	sizeFactor := 0.15 * float64(count-d.cfg.MinCount)
	amountFactor := 0.0
	if d.cfg.MaxAmount > 0 {
		amountFactor = 0.2 * (1 - avg/d.cfg.MaxAmount)
	}
	severity := clamp01(0.5 + sizeFactor + amountFactor)

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   severity,
		Confidence: 0.9,
		ReasonCode: domain.ReasonCardTestingBurst,
		Evidence:   evidence,
	}, nil
}
