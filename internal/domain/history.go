package domain

import (
	"context"
	"errors"
	"time"
)

// ErrDataSourceUnavailable is returned by a HistoryStore when the
// backing store cannot be reached. The coordinator degrades to a
// zero-history profile instead of refusing analysis.
var ErrDataSourceUnavailable = errors.New("history data source unavailable")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// HistoryStore is the transaction data source consumed by the engine.
// The engine does not own storage; it reads history snapshots before
// scoring and appends the scored transaction after the verdict is
// finalized. Append is single-writer per user id.
type HistoryStore interface {
	// GetProfile returns the user's historical profile. A user with
	// no history yields an empty profile, not an error.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// Append records a scored transaction and its verdict. Called
	// only after the verdict is finalized.
	Append(ctx context.Context, tx *Transaction, verdict *Verdict) error

	// GetTransaction retrieves a previously appended transaction.
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)

	// GetVerdict retrieves a verdict by its id.
	GetVerdict(ctx context.Context, verdictID string) (*Verdict, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// HistoryConfig holds configuration for history store initialization.
type HistoryConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string

	// ProfileLimit caps how many recent transactions a profile load
	// returns. Zero means the default.
	ProfileLimit int

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
