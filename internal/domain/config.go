package domain

import "time"

// Canonical names for the built-in detectors. Weight configuration,
// findings, and misses are all keyed by these.
const (
	DetectorCardTesting     = "card_testing"
	DetectorGeoImpossible   = "geo_impossibility"
	DetectorVelocity        = "velocity"
	DetectorCategoryAnomaly = "category_anomaly"
	DetectorTemporalAnomaly = "temporal_anomaly"
	DetectorMerchantScreen  = "merchant_screening"

	// Specialist group names used in multi-agent mode.
	SpecialistPattern = "pattern_specialist"
	SpecialistRisk    = "risk_specialist"
)

// Config holds the complete Kestrel configuration. Threaded into the
// coordinator and scoring engine at construction time; there is no
// process-wide mutable state.
type Config struct {
	Server ServerConfig `json:"server"`

	Detectors   DetectorConfig    `json:"detectors"`
	Scoring     ScoringConfig     `json:"scoring"`
	Coordinator CoordinatorConfig `json:"coordinator"`

	History  HistoryConfig  `json:"history"`
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`
	Advisor  AdvisorConfig  `json:"advisor"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// DetectorConfig holds the per-pattern tuning knobs.
type DetectorConfig struct {
	CardTesting CardTestingConfig `json:"cardTesting"`
	Geo         GeoConfig         `json:"geo"`
	Velocity    VelocityConfig    `json:"velocity"`
	Category    CategoryConfig    `json:"category"`
	Temporal    TemporalConfig    `json:"temporal"`
	Merchant    MerchantConfig    `json:"merchant"`

	// Rules are operator-defined CEL expressions evaluated as extra
	// detectors alongside the built-ins.
	Rules []CustomRule `json:"rules,omitempty"`
}

// CardTestingConfig tunes the card-testing burst detector.
type CardTestingConfig struct {
	// MinCount is the burst size at which the pattern fires.
	MinCount int `json:"minCount"`

	// MaxAmount is the small-amount ceiling for a probe transaction.
	MaxAmount float64 `json:"maxAmount"`

	// Window is the burst window.
	Window time.Duration `json:"window"`
}

// GeoConfig tunes the geographic-impossibility detector.
type GeoConfig struct {
	// MaxSpeedKMH is the implied-travel-speed plausibility ceiling.
	MaxSpeedKMH float64 `json:"maxSpeedKmh"`
}

// VelocityConfig tunes the transaction-velocity detector.
type VelocityConfig struct {
	Window time.Duration `json:"window"`

	// KFactor: flag when count exceeds baseline mean + k*stddev.
	KFactor float64 `json:"kFactor"`
}

// CategoryConfig tunes the merchant-category anomaly detector.
type CategoryConfig struct {
	// MinHistory is the minimum history size before the category
	// profile is considered established.
	MinHistory int `json:"minHistory"`
}

// TemporalConfig tunes the temporal-anomaly detector.
type TemporalConfig struct {
	// MinAmount is the materiality floor below which off-hours
	// activity is not flagged.
	MinAmount float64 `json:"minAmount"`

	// MinHistory is the minimum history size before an active-hours
	// envelope is considered established.
	MinHistory int `json:"minHistory"`

	// MinHourShare is the share of history an hour needs to count as
	// part of the user's active envelope.
	MinHourShare float64 `json:"minHourShare"`
}

// MerchantConfig tunes the merchant screening detector.
type MerchantConfig struct {
	// Blacklist is the set of merchants that always fire.
	Blacklist []string `json:"blacklist,omitempty"`

	// CategoryRisk maps merchant category to a base risk in [0,1].
	CategoryRisk map[string]float64 `json:"categoryRisk,omitempty"`

	// RiskFloor is the category risk at which a finding is emitted.
	RiskFloor float64 `json:"riskFloor"`
}

// CustomRule is an operator-defined CEL detector.
type CustomRule struct {
	ID          string  `json:"id"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// ScoringConfig holds the combination rule parameters.
type ScoringConfig struct {
	// Weights maps detector name to its weight in the combination
	// rule. Detectors absent from the map get DefaultWeight.
	Weights map[string]float64 `json:"weights"`

	DefaultWeight float64 `json:"defaultWeight"`

	// Classification thresholds on the aggregate score.
	FraudulentThreshold float64 `json:"fraudulentThreshold"`
	SuspiciousThreshold float64 `json:"suspiciousThreshold"`

	// MissPenalty is subtracted from confidence per missing detector.
	MissPenalty float64 `json:"missPenalty"`
}

// CoordinatorConfig holds dispatch and degradation settings.
type CoordinatorConfig struct {
	// TaskTimeout bounds a single detector task.
	TaskTimeout time.Duration `json:"taskTimeout"`

	// RequestDeadline bounds a whole analysis request.
	RequestDeadline time.Duration `json:"requestDeadline"`

	// MissTolerance is the fraction of detectors that may miss before
	// the verdict is degraded.
	MissTolerance float64 `json:"missTolerance"`

	// Specialists enables multi-agent mode: detectors grouped into
	// specialist units reporting sub-aggregates.
	Specialists bool `json:"specialists"`

	// FutureTolerance is how far a timestamp may lie in the future
	// before the transaction is rejected as invalid.
	FutureTolerance time.Duration `json:"futureTolerance"`
}

// AdvisorConfig holds the language-model advisor settings.
type AdvisorConfig struct {
	// Endpoint is the HTTP endpoint of the advisor; empty disables it.
	Endpoint string `json:"endpoint"`

	// Timeout bounds one Explain call.
	Timeout time.Duration `json:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the default configuration. All numeric
// defaults here are configuration, not fixed law; operators tune them
// per deployment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Detectors: DetectorConfig{
			CardTesting: CardTestingConfig{
				MinCount:  3,
				MaxAmount: 2.00,
				Window:    10 * time.Minute,
			},
			Geo: GeoConfig{
				MaxSpeedKMH: 1000,
			},
			Velocity: VelocityConfig{
				Window:  time.Hour,
				KFactor: 3,
			},
			Category: CategoryConfig{
				MinHistory: 5,
			},
			Temporal: TemporalConfig{
				MinAmount:    25.00,
				MinHistory:   10,
				MinHourShare: 0.04,
			},
			Merchant: MerchantConfig{
				RiskFloor: 0.7,
				CategoryRisk: map[string]float64{
					"grocery":         0.1,
					"restaurant":      0.2,
					"gas_station":     0.3,
					"online_retail":   0.4,
					"online_services": 0.5,
					"electronics":     0.6,
					"luxury_goods":    0.7,
					"cryptocurrency":  0.8,
					"cash_advance":    0.9,
				},
			},
		},
		Scoring: ScoringConfig{
			Weights: map[string]float64{
				DetectorCardTesting:     0.90,
				DetectorGeoImpossible:   0.95,
				DetectorVelocity:        0.70,
				DetectorCategoryAnomaly: 0.60,
				DetectorTemporalAnomaly: 0.40,
				DetectorMerchantScreen:  0.50,
			},
			DefaultWeight:       0.50,
			FraudulentThreshold: 0.75,
			SuspiciousThreshold: 0.35,
			MissPenalty:         0.10,
		},
		Coordinator: CoordinatorConfig{
			TaskTimeout:     2 * time.Second,
			RequestDeadline: 5 * time.Second,
			MissTolerance:   0.5,
			Specialists:     false,
			FutureTolerance: 5 * time.Minute,
		},
		History: HistoryConfig{
			Driver:       "sqlite",
			SQLitePath:   "./kestrel.db",
			ProfileLimit: 500,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Advisor: AdvisorConfig{
			Timeout: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}
