package history

// Schema definitions for the Kestrel history store.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    merchant TEXT NOT NULL,
    merchant_category TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    location_lat REAL,
    location_lon REAL,
    channel TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, timestamp);
`

const schemaVerdicts = `
CREATE TABLE IF NOT EXISTS verdicts (
    id TEXT PRIMARY KEY,
    tx_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    score REAL NOT NULL,
    classification TEXT NOT NULL,
    confidence REAL NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    findings TEXT NOT NULL,
    misses TEXT,
    explanation TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_tx ON verdicts(tx_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_user ON verdicts(user_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_classification ON verdicts(classification);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaVerdicts,
	}
}
