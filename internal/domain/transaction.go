// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Channel identifies how a transaction was presented.
type Channel string

const (
	ChannelCardPresent    Channel = "card_present"
	ChannelCardNotPresent Channel = "card_not_present"
	ChannelOnline         Channel = "online"
)

// Geolocation is a WGS84 coordinate pair.
type Geolocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Transaction represents an incoming transaction to be analyzed.
// Immutable once created; the engine never writes to a Transaction
// after ingestion.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Merchant details
	Merchant         string `json:"merchant,omitempty"`
	MerchantCategory string `json:"merchantCategory"`

	// Temporal (UTC)
	Timestamp time.Time `json:"timestamp"`

	// Optional geolocation; nil when the acquirer did not supply one
	Location *Geolocation `json:"location,omitempty"`

	Channel Channel `json:"channel"`
}

// ErrInvalidInput marks a transaction that cannot be analyzed at all.
// Wrapped errors carry the specific reason.
var ErrInvalidInput = errors.New("invalid transaction input")

// Validate checks the structural preconditions for analysis.
// A failing transaction is rejected before any detector runs.
func (t *Transaction) Validate(now time.Time, futureTolerance time.Duration) error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidInput)
	}
	if t.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return fmt.Errorf("%w: non-finite amount", ErrInvalidInput)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidInput)
	}
	if t.Timestamp.After(now.Add(futureTolerance)) {
		return fmt.Errorf("%w: timestamp is in the future", ErrInvalidInput)
	}
	return nil
}

// HourUTC returns the transaction's hour of day in UTC.
func (t *Transaction) HourUTC() int {
	return t.Timestamp.UTC().Hour()
}
