// Package history provides transaction data source implementations.
package history

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// defaultProfileLimit caps how many recent transactions a profile
// load returns when the configuration does not say.
const defaultProfileLimit = 500

// New creates a history store based on configuration.
func New(cfg domain.HistoryConfig) (domain.HistoryStore, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(cfg.ProfileLimit), nil
	case "sqlite", "postgres":
		return newSQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", cfg.Driver)
	}
}
