package domain

import (
	"math"
	"sort"
	"time"
)

// UserProfile is a user's transaction history as loaded from the
// history store. Transactions are ordered by timestamp, most recent
// last. Profiles are mutated only by appending a transaction after
// its verdict is finalized.
type UserProfile struct {
	UserID       string        `json:"userId"`
	Transactions []Transaction `json:"transactions"`
}

// ProfileStats holds the rolling statistics derived from a profile.
type ProfileStats struct {
	Count        int     `json:"count"`
	MeanAmount   float64 `json:"meanAmount"`
	StdDevAmount float64 `json:"stdDevAmount"`
	P90Amount    float64 `json:"p90Amount"`

	// CategoryCounts maps merchant category to frequency in history.
	CategoryCounts map[string]int `json:"categoryCounts"`

	// HourCounts is the number of transactions per UTC hour of day.
	HourCounts [24]int `json:"hourCounts"`

	// HourlyMean and HourlyStdDev describe the baseline transaction
	// count per one-hour window across the observed history span.
	HourlyMean   float64 `json:"hourlyMean"`
	HourlyStdDev float64 `json:"hourlyStdDev"`
}

// ProfileSnapshot is a read-only view of a profile taken at the start
// of one analysis request. All detectors for that request share the
// same snapshot, which guarantees determinism within a decision cycle.
type ProfileSnapshot struct {
	UserID       string
	Transactions []Transaction
	Stats        ProfileStats
}

// Snapshot produces an immutable snapshot with derived statistics.
// The transaction slice is copied so later appends to the profile
// cannot be observed by in-flight detectors.
func (p *UserProfile) Snapshot() *ProfileSnapshot {
	txs := make([]Transaction, len(p.Transactions))
	copy(txs, p.Transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})

	return &ProfileSnapshot{
		UserID:       p.UserID,
		Transactions: txs,
		Stats:        computeStats(txs),
	}
}

// Last returns the most recent historical transaction, or nil for an
// empty history.
func (s *ProfileSnapshot) Last() *Transaction {
	if len(s.Transactions) == 0 {
		return nil
	}
	return &s.Transactions[len(s.Transactions)-1]
}

// Within returns the historical transactions whose timestamps fall in
// (end-window, end].
func (s *ProfileSnapshot) Within(end time.Time, window time.Duration) []Transaction {
	start := end.Add(-window)
	var out []Transaction
	for _, tx := range s.Transactions {
		if tx.Timestamp.After(start) && !tx.Timestamp.After(end) {
			out = append(out, tx)
		}
	}
	return out
}

func computeStats(txs []Transaction) ProfileStats {
	stats := ProfileStats{
		Count:          len(txs),
		CategoryCounts: make(map[string]int),
	}
	if len(txs) == 0 {
		return stats
	}

	amounts := make([]float64, 0, len(txs))
	var sum float64
	for _, tx := range txs {
		amounts = append(amounts, tx.Amount)
		sum += tx.Amount
		stats.CategoryCounts[tx.MerchantCategory]++
		stats.HourCounts[tx.HourUTC()]++
	}

	stats.MeanAmount = sum / float64(len(txs))

	var variance float64
	for _, a := range amounts {
		d := a - stats.MeanAmount
		variance += d * d
	}
	variance /= float64(len(txs))
	stats.StdDevAmount = math.Sqrt(variance)

	sort.Float64s(amounts)
	stats.P90Amount = percentile(amounts, 0.90)

	stats.HourlyMean, stats.HourlyStdDev = hourlyBaseline(txs)

	return stats
}

// percentile computes the p-quantile of a sorted slice using
// nearest-rank interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// maxBaselineBuckets caps the baseline computation at 30 days of
// one-hour windows so ancient history does not flatten the rate.
const maxBaselineBuckets = 24 * 30

// hourlyBaseline buckets history into one-hour windows across the
// observed span and returns the mean and standard deviation of the
// per-window transaction count.
func hourlyBaseline(txs []Transaction) (mean, stddev float64) {
	if len(txs) == 0 {
		return 0, 0
	}

	first := txs[0].Timestamp
	last := txs[len(txs)-1].Timestamp
	span := last.Sub(first)

	buckets := int(span/time.Hour) + 1
	if buckets > maxBaselineBuckets {
		buckets = maxBaselineBuckets
		first = last.Add(-time.Duration(buckets-1) * time.Hour)
	}

	counts := make([]float64, buckets)
	for _, tx := range txs {
		if tx.Timestamp.Before(first) {
			continue
		}
		idx := int(tx.Timestamp.Sub(first) / time.Hour)
		if idx >= buckets {
			idx = buckets - 1
		}
		counts[idx]++
	}

	var sum float64
	for _, c := range counts {
		sum += c
	}
	mean = sum / float64(buckets)

	var variance float64
	for _, c := range counts {
		d := c - mean
		variance += d * d
	}
	variance /= float64(buckets)

	return mean, math.Sqrt(variance)
}

// ActiveHours returns the set of UTC hours that account for the bulk
// of the user's historical activity. An hour is active when it holds
// at least minShare of all transactions, or is adjacent to such an
// hour. Returns the zero set for histories below minHistory entries,
// meaning no envelope is established yet.
func (s *ProfileSnapshot) ActiveHours(minHistory int, minShare float64) (active [24]bool, established bool) {
	if s.Stats.Count < minHistory {
		return active, false
	}

	total := float64(s.Stats.Count)
	for h := 0; h < 24; h++ {
		if float64(s.Stats.HourCounts[h])/total >= minShare {
			active[h] = true
		}
	}

	// Widen by one hour each side to avoid flagging the edges of a
	// user's normal day.
	var widened [24]bool
	for h := 0; h < 24; h++ {
		if active[h] {
			widened[h] = true
			widened[(h+1)%24] = true
			widened[(h+23)%24] = true
		}
	}
	return widened, true
}
