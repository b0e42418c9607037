// Benchmark tool for exercising a running Kestrel instance.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -users 50 -txs 2000
//
// This tool:
//  1. Generates synthetic card traffic for a population of users
//  2. Injects labeled fraud patterns (card-testing bursts, impossible travel)
//  3. Sends each transaction to POST /analyze
//  4. Reports the confusion matrix, precision/recall, and latency percentiles
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type labeledTx struct {
	Tx    transaction
	Fraud bool
}

type transaction struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	Amount           float64      `json:"amount"`
	Currency         string       `json:"currency"`
	Merchant         string       `json:"merchant"`
	MerchantCategory string       `json:"merchantCategory"`
	Timestamp        time.Time    `json:"timestamp"`
	Location         *geolocation `json:"location,omitempty"`
}

type geolocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type verdict struct {
	ID             string  `json:"id"`
	Classification string  `json:"classification"`
	Score          float64 `json:"score"`
	Confidence     float64 `json:"confidence"`
	Degraded       bool    `json:"degraded"`
}

type metrics struct {
	TruePositives  int64
	FalsePositives int64
	TrueNegatives  int64
	FalseNegatives int64

	TotalProcessed int64
	TotalErrors    int64
	Degraded       int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

var categories = []string{"grocery", "restaurant", "gas_station", "online_retail", "electronics"}

var cities = []geolocation{
	{40.7128, -74.0060},  // New York
	{34.0522, -118.2437}, // Los Angeles
	{41.8781, -87.6298},  // Chicago
	{29.7604, -95.3698},  // Houston
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	users := flag.Int("users", 50, "Number of synthetic users")
	txCount := flag.Int("txs", 2000, "Total transactions to send")
	fraudRate := flag.Float64("fraud", 0.05, "Fraction of users given an injected fraud pattern")
	workers := flag.Int("workers", 10, "Number of concurrent senders")
	seed := flag.Int64("seed", 42, "PRNG seed for reproducible traffic")
	verbose := flag.Bool("verbose", false, "Print each mismatch")
	flag.Parse()

	fmt.Println("KESTREL BENCHMARK")
	fmt.Printf("  URL:        %s\n", *baseURL)
	fmt.Printf("  Users:      %d\n", *users)
	fmt.Printf("  Txs:        %d\n", *txCount)
	fmt.Printf("  Fraud rate: %.2f\n", *fraudRate)
	fmt.Printf("  Workers:    %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("kestrel is healthy")

	rng := rand.New(rand.NewSource(*seed))
	traffic := generateTraffic(rng, *users, *txCount, *fraudRate)
	fmt.Printf("generated %d transactions\n\n", len(traffic))

	m := &metrics{}
	start := time.Now()
	run(traffic, *baseURL, *workers, *verbose, m)
	printResults(m, time.Since(start))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateTraffic builds per-user habit traffic, then appends a fraud
// pattern for a slice of the population. Transactions are ordered by
// timestamp per user so history accumulates naturally.
func generateTraffic(rng *rand.Rand, users, txCount int, fraudRate float64) []labeledTx {
	var out []labeledTx
	base := time.Now().UTC().Add(-30 * 24 * time.Hour)
	perUser := txCount / users
	if perUser < 1 {
		perUser = 1
	}

	seq := 0
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("bench-user-%03d", u)
		homeCity := cities[rng.Intn(len(cities))]
		habitCategory := categories[rng.Intn(len(categories))]
		habitHour := 9 + rng.Intn(10)
		meanAmount := 20 + rng.Float64()*80

		// Baseline habit traffic, roughly daily
		at := base
		for i := 0; i < perUser; i++ {
			seq++
			amount := meanAmount * (0.7 + rng.Float64()*0.6)
			at = at.Add(time.Duration(20+rng.Intn(8)) * time.Hour)
			ts := time.Date(at.Year(), at.Month(), at.Day(), habitHour, rng.Intn(60), 0, 0, time.UTC)
			out = append(out, labeledTx{Tx: transaction{
				ID:               fmt.Sprintf("bench-tx-%06d", seq),
				UserID:           userID,
				Amount:           float64(int(amount*100)) / 100,
				Currency:         "USD",
				Merchant:         "Habit " + habitCategory,
				MerchantCategory: habitCategory,
				Timestamp:        ts,
				Location:         &geolocation{homeCity.Lat, homeCity.Lon},
			}})
		}

		if rng.Float64() >= fraudRate {
			continue
		}

		// Inject one of two fraud patterns after the habit traffic
		fraudStart := at.Add(time.Hour)
		if rng.Intn(2) == 0 {
			// Card-testing burst: five sub-$2 probes in ten minutes
			for i := 0; i < 5; i++ {
				seq++
				out = append(out, labeledTx{Fraud: true, Tx: transaction{
					ID:               fmt.Sprintf("bench-tx-%06d", seq),
					UserID:           userID,
					Amount:           0.99 + rng.Float64(),
					Currency:         "USD",
					Merchant:         "Probe Store",
					MerchantCategory: "online_retail",
					Timestamp:        fraudStart.Add(time.Duration(i) * time.Minute),
				}})
			}
		} else {
			// Impossible travel: home city, then Tokyo five minutes later
			seq++
			out = append(out, labeledTx{Fraud: true, Tx: transaction{
				ID:               fmt.Sprintf("bench-tx-%06d", seq),
				UserID:           userID,
				Amount:           60,
				Currency:         "USD",
				Merchant:         "Tokyo Electronics",
				MerchantCategory: "electronics",
				Timestamp:        fraudStart.Add(5 * time.Minute),
				Location:         &geolocation{35.6762, 139.6503},
			}})
		}
	}
	return out
}

func run(traffic []labeledTx, baseURL string, workers int, verbose bool, m *metrics) {
	// Per-user ordering matters for history; shard users over workers
	// instead of sharing one queue.
	shards := make([]chan labeledTx, workers)
	for i := range shards {
		shards[i] = make(chan labeledTx, 100)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(work chan labeledTx) {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}
			for item := range work {
				sendOne(client, baseURL, item, verbose, m)
			}
		}(shards[i])
	}

	userShard := make(map[string]int)
	next := 0
	for _, item := range traffic {
		shard, ok := userShard[item.Tx.UserID]
		if !ok {
			shard = next % workers
			userShard[item.Tx.UserID] = shard
			next++
		}
		shards[shard] <- item
	}
	for i := range shards {
		close(shards[i])
	}
	wg.Wait()
}

func sendOne(client *http.Client, baseURL string, item labeledTx, verbose bool, m *metrics) {
	payload, _ := json.Marshal(item.Tx)

	start := time.Now()
	resp, err := client.Post(baseURL+"/analyze", "application/json", bytes.NewReader(payload))
	elapsed := time.Since(start)

	atomic.AddInt64(&m.TotalProcessed, 1)
	m.recordLatency(elapsed)

	if err != nil {
		atomic.AddInt64(&m.TotalErrors, 1)
		return
	}
	defer resp.Body.Close()

	var v verdict
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&v) != nil {
		atomic.AddInt64(&m.TotalErrors, 1)
		return
	}
	if v.Degraded {
		atomic.AddInt64(&m.Degraded, 1)
	}

	flagged := v.Classification != "legitimate"
	switch {
	case flagged && item.Fraud:
		atomic.AddInt64(&m.TruePositives, 1)
	case flagged && !item.Fraud:
		atomic.AddInt64(&m.FalsePositives, 1)
		if verbose {
			fmt.Printf("FP %s: %s score %.2f ($%.2f %s)\n",
				item.Tx.ID, v.Classification, v.Score, item.Tx.Amount, item.Tx.MerchantCategory)
		}
	case !flagged && !item.Fraud:
		atomic.AddInt64(&m.TrueNegatives, 1)
	default:
		atomic.AddInt64(&m.FalseNegatives, 1)
		if verbose {
			fmt.Printf("FN %s: score %.2f ($%.2f %s)\n",
				item.Tx.ID, v.Score, item.Tx.Amount, item.Tx.MerchantCategory)
		}
	}
}

func printResults(m *metrics, duration time.Duration) {
	tp, fp := float64(m.TruePositives), float64(m.FalsePositives)
	_, fn := float64(m.TrueNegatives), float64(m.FalseNegatives)

	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	fmt.Println("\nRESULTS")
	fmt.Printf("  Processed:   %d in %s (%.1f tx/s)\n",
		m.TotalProcessed, duration.Round(time.Millisecond),
		float64(m.TotalProcessed)/duration.Seconds())
	fmt.Printf("  Errors:      %d\n", m.TotalErrors)
	fmt.Printf("  Degraded:    %d\n", m.Degraded)
	fmt.Println()
	fmt.Printf("  Confusion:   TP=%d FP=%d TN=%d FN=%d\n",
		m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives)
	fmt.Printf("  Precision:   %.3f\n", precision)
	fmt.Printf("  Recall:      %.3f\n", recall)
	fmt.Printf("  F1:          %.3f\n", f1)

	m.mu.Lock()
	lats := m.latencies
	m.mu.Unlock()
	if len(lats) > 0 {
		sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
		fmt.Println()
		fmt.Printf("  Latency p50: %s\n", lats[len(lats)/2].Round(time.Microsecond))
		fmt.Printf("  Latency p95: %s\n", lats[len(lats)*95/100].Round(time.Microsecond))
		fmt.Printf("  Latency p99: %s\n", lats[len(lats)*99/100].Round(time.Microsecond))
	}
}
