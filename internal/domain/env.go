package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadConfig builds the runtime configuration: defaults overridden by
// KESTREL_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	// Server
	envString("KESTREL_HOST", &cfg.Server.Host)
	envInt("KESTREL_PORT", &cfg.Server.Port)

	// History
	envString("KESTREL_HISTORY_DRIVER", &cfg.History.Driver)
	envString("KESTREL_SQLITE_PATH", &cfg.History.SQLitePath)
	envInt("KESTREL_PROFILE_LIMIT", &cfg.History.ProfileLimit)
	envString("KESTREL_POSTGRES_HOST", &cfg.History.PostgresHost)
	envInt("KESTREL_POSTGRES_PORT", &cfg.History.PostgresPort)
	envString("KESTREL_POSTGRES_USER", &cfg.History.PostgresUser)
	envString("KESTREL_POSTGRES_PASSWORD", &cfg.History.PostgresPassword)
	envString("KESTREL_POSTGRES_DB", &cfg.History.PostgresDB)
	envString("KESTREL_POSTGRES_SSLMODE", &cfg.History.PostgresSSLMode)

	// Cache
	envString("KESTREL_CACHE_TYPE", &cfg.Cache.Type)
	envString("KESTREL_REDIS_ADDR", &cfg.Cache.RedisAddr)
	envString("KESTREL_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	envInt("KESTREL_REDIS_DB", &cfg.Cache.RedisDB)
	envDuration("KESTREL_CACHE_TTL", &cfg.Cache.LocalTTL)

	// Event bus
	envString("KESTREL_BUS_TYPE", &cfg.EventBus.Type)
	envString("KESTREL_NATS_URL", &cfg.EventBus.NATSUrl)
	envString("KESTREL_NATS_TOKEN", &cfg.EventBus.NATSToken)

	// Coordinator
	envDuration("KESTREL_TASK_TIMEOUT", &cfg.Coordinator.TaskTimeout)
	envDuration("KESTREL_REQUEST_DEADLINE", &cfg.Coordinator.RequestDeadline)
	envFloat("KESTREL_MISS_TOLERANCE", &cfg.Coordinator.MissTolerance)
	envBool("KESTREL_SPECIALISTS", &cfg.Coordinator.Specialists)

	// Scoring
	envFloat("KESTREL_FRAUDULENT_THRESHOLD", &cfg.Scoring.FraudulentThreshold)
	envFloat("KESTREL_SUSPICIOUS_THRESHOLD", &cfg.Scoring.SuspiciousThreshold)

	// Advisor
	envString("KESTREL_ADVISOR_ENDPOINT", &cfg.Advisor.Endpoint)
	envDuration("KESTREL_ADVISOR_TIMEOUT", &cfg.Advisor.Timeout)

	// Logging
	envString("KESTREL_LOG_LEVEL", &cfg.Logging.Level)
	envString("KESTREL_LOG_FORMAT", &cfg.Logging.Format)

	// Custom CEL rules come from a JSON file, not individual env vars.
	if path := os.Getenv("KESTREL_RULES_FILE"); path != "" {
		rules, err := loadRulesFile(path)
		if err != nil {
			return nil, fmt.Errorf("rules file %s: %w", path, err)
		}
		cfg.Detectors.Rules = rules
	}

	return cfg, nil
}

// loadRulesFile reads a JSON array of custom rules.
func loadRulesFile(path string) ([]CustomRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []CustomRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
