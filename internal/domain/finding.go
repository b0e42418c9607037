package domain

// Finding is a single detector's structured output for one
// transaction. Immutable once produced.
type Finding struct {
	// Detector is the producing detector's registered name.
	Detector string `json:"detector"`

	// Severity in [0,1]: how strongly the pattern matched.
	Severity float64 `json:"severity"`

	// Confidence in [0,1]: how much data backed the assessment.
	Confidence float64 `json:"confidence"`

	// ReasonCode is a machine-readable pattern identifier,
	// e.g. "card_testing_burst" or "impossible_travel".
	ReasonCode string `json:"reasonCode"`

	// Evidence carries the numbers behind the finding: distances,
	// time deltas, z-scores, counts.
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Well-known reason codes emitted by the built-in detectors.
const (
	ReasonCardTestingBurst  = "card_testing_burst"
	ReasonImpossibleTravel  = "impossible_travel"
	ReasonVelocitySpike     = "velocity_spike"
	ReasonCategoryAnomaly   = "category_anomaly"
	ReasonOffHoursActivity  = "off_hours_activity"
	ReasonMerchantBlacklist = "merchant_blacklisted"
	ReasonMerchantHighRisk  = "merchant_high_risk"
	ReasonCustomRule        = "custom_rule"
	ReasonSubAggregate      = "specialist_subaggregate"

	// ReasonClear marks a zero-severity finding: the pattern was
	// evaluated with sufficient data and found nothing.
	ReasonClear = "clear"
)

// MissReason explains why a detector produced no result.
type MissReason string

const (
	MissTimeout   MissReason = "timeout"
	MissFailure   MissReason = "failure"
	MissNoData    MissReason = "data_unavailable"
	MissCancelled MissReason = "cancelled"
)

// Miss records a detector that failed, errored, or timed out during
// one analysis request. Misses degrade confidence, never the score.
type Miss struct {
	Detector string     `json:"detector"`
	Reason   MissReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}
