package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLStore implements domain.HistoryStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
	limit  int
}

// newSQL opens the configured database and runs migrations.
func newSQL(cfg domain.HistoryConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	limit := cfg.ProfileLimit
	if limit <= 0 {
		limit = defaultProfileLimit
	}

	store := &SQLStore{db: db, driver: cfg.Driver, limit: limit}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// GetProfile loads the user's most recent transactions, newest
// capped by the profile limit. Backend failures map to
// ErrDataSourceUnavailable so the coordinator can degrade instead of
// refusing analysis.
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT id, user_id, amount, currency, merchant, merchant_category,
		       timestamp, location_lat, location_lon, channel
		FROM transactions
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataSourceUnavailable, err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDataSourceUnavailable, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataSourceUnavailable, err)
	}

	return &domain.UserProfile{UserID: userID, Transactions: txs}, nil
}

// Append stores the transaction and its verdict in one database
// transaction so a crash cannot record one without the other.
func (s *SQLStore) Append(ctx context.Context, tx *domain.Transaction, verdict *domain.Verdict) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer dbTx.Rollback()

	var lat, lon any
	if tx.Location != nil {
		lat, lon = tx.Location.Lat, tx.Location.Lon
	}

	insertTx := `
		INSERT INTO transactions (
			id, user_id, amount, currency, merchant, merchant_category,
			timestamp, location_lat, location_lon, channel
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := dbTx.ExecContext(ctx, s.rebind(insertTx),
		tx.ID, tx.UserID, tx.Amount, tx.Currency,
		tx.Merchant, tx.MerchantCategory, tx.Timestamp,
		lat, lon, string(tx.Channel),
	); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if verdict != nil {
		findings, _ := json.Marshal(verdict.Findings)
		misses, _ := json.Marshal(verdict.Misses)
		metadata, _ := json.Marshal(verdict.Metadata)

		degraded := 0
		if verdict.Degraded {
			degraded = 1
		}

		insertVerdict := `
			INSERT INTO verdicts (
				id, tx_id, user_id, score, classification, confidence,
				degraded, findings, misses, explanation, timestamp, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := dbTx.ExecContext(ctx, s.rebind(insertVerdict),
			verdict.ID, verdict.TxID, verdict.UserID,
			verdict.Score, string(verdict.Classification), verdict.Confidence,
			degraded, string(findings), string(misses),
			verdict.Explanation, verdict.Timestamp, string(metadata),
		); err != nil {
			return fmt.Errorf("insert verdict: %w", err)
		}
	}

	return dbTx.Commit()
}

func (s *SQLStore) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, amount, currency, merchant, merchant_category,
		       timestamp, location_lat, location_lon, channel
		FROM transactions
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, s.rebind(query), txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *SQLStore) GetVerdict(ctx context.Context, verdictID string) (*domain.Verdict, error) {
	query := `
		SELECT id, tx_id, user_id, score, classification, confidence,
		       degraded, findings, misses, explanation, timestamp, metadata
		FROM verdicts
		WHERE id = ?
	`

	var v domain.Verdict
	var classification string
	var degraded int
	var findings, misses, metadata string
	var explanation sql.NullString

	err := s.db.QueryRowContext(ctx, s.rebind(query), verdictID).Scan(
		&v.ID, &v.TxID, &v.UserID, &v.Score, &classification, &v.Confidence,
		&degraded, &findings, &misses, &explanation, &v.Timestamp, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	v.Classification = domain.Classification(classification)
	v.Degraded = degraded == 1
	v.Explanation = explanation.String
	json.Unmarshal([]byte(findings), &v.Findings)
	json.Unmarshal([]byte(misses), &v.Misses)
	json.Unmarshal([]byte(metadata), &v.Metadata)

	return &v, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var lat, lon sql.NullFloat64
	var channel string

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Currency,
		&tx.Merchant, &tx.MerchantCategory, &tx.Timestamp,
		&lat, &lon, &channel,
	)
	if err != nil {
		return tx, err
	}

	tx.Channel = domain.Channel(channel)
	if lat.Valid && lon.Valid {
		tx.Location = &domain.Geolocation{Lat: lat.Float64, Lon: lon.Float64}
	}
	return tx, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
