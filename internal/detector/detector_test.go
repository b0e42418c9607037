package detector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var baseTime = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func testConfig() domain.DetectorConfig {
	return domain.DefaultConfig().Detectors
}

func makeTx(id string, amount float64, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:               id,
		UserID:           "user-1",
		Amount:           amount,
		Currency:         "USD",
		Merchant:         "Acme Store",
		MerchantCategory: "grocery",
		Timestamp:        at,
		Channel:          domain.ChannelOnline,
	}
}

func snapshotOf(txs ...domain.Transaction) *domain.ProfileSnapshot {
	p := &domain.UserProfile{UserID: "user-1", Transactions: txs}
	return p.Snapshot()
}

func TestCardTestingBurst(t *testing.T) {
	d := NewCardTesting(testConfig())

	var history []domain.Transaction
	for i := 0; i < 4; i++ {
		history = append(history, makeTx(fmt.Sprintf("tx-%d", i), 1.50, baseTime.Add(time.Duration(i)*time.Minute)))
	}

	tx := makeTx("tx-current", 1.50, baseTime.Add(4*time.Minute))
	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil {
		t.Fatal("expected a finding for a 5-probe burst")
	}
	if f.ReasonCode != domain.ReasonCardTestingBurst {
		t.Errorf("expected burst reason, got %s", f.ReasonCode)
	}
	if f.Severity < 0.8 {
		t.Errorf("expected high severity for tight burst, got %.2f", f.Severity)
	}
}

func TestCardTestingBelowThreshold(t *testing.T) {
	d := NewCardTesting(testConfig())

	history := []domain.Transaction{
		makeTx("tx-0", 1.00, baseTime),
	}
	tx := makeTx("tx-current", 1.00, baseTime.Add(time.Minute))

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil {
		t.Fatal("expected an evaluated-clean finding")
	}
	if f.Severity != 0 || f.ReasonCode != domain.ReasonClear {
		t.Errorf("expected clear outcome, got severity=%.2f reason=%s", f.Severity, f.ReasonCode)
	}
}

func TestCardTestingLargeAmountsDoNotCount(t *testing.T) {
	d := NewCardTesting(testConfig())

	var history []domain.Transaction
	for i := 0; i < 6; i++ {
		history = append(history, makeTx(fmt.Sprintf("tx-%d", i), 80.00, baseTime.Add(time.Duration(i)*time.Minute)))
	}
	tx := makeTx("tx-current", 75.00, baseTime.Add(7*time.Minute))

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f != nil && f.Severity > 0 {
		t.Errorf("large amounts are not probes, got severity %.2f", f.Severity)
	}
}

func TestGeoImpossibleTravel(t *testing.T) {
	d := NewGeoImpossibility(testConfig())

	prev := makeTx("tx-prev", 50, baseTime)
	prev.Location = &domain.Geolocation{Lat: 40.7128, Lon: -74.0060} // New York

	tx := makeTx("tx-current", 60, baseTime.Add(5*time.Minute))
	tx.Location = &domain.Geolocation{Lat: 35.6762, Lon: 139.6503} // Tokyo

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(prev))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil {
		t.Fatal("expected a finding for New York to Tokyo in five minutes")
	}
	if f.ReasonCode != domain.ReasonImpossibleTravel {
		t.Errorf("expected impossible travel reason, got %s", f.ReasonCode)
	}
	if f.Severity < 0.99 {
		t.Errorf("expected saturated severity, got %.2f", f.Severity)
	}
	if f.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %.2f", f.Confidence)
	}
}

func TestGeoPlausibleTravel(t *testing.T) {
	d := NewGeoImpossibility(testConfig())

	prev := makeTx("tx-prev", 50, baseTime)
	prev.Location = &domain.Geolocation{Lat: 40.7128, Lon: -74.0060} // New York

	tx := makeTx("tx-current", 60, baseTime.Add(2*time.Hour))
	tx.Location = &domain.Geolocation{Lat: 42.3601, Lon: -71.0589} // Boston

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(prev))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.Severity != 0 {
		t.Error("Boston two hours after New York should evaluate clean")
	}
}

func TestGeoAbsentWithoutLocation(t *testing.T) {
	d := NewGeoImpossibility(testConfig())

	prev := makeTx("tx-prev", 50, baseTime)
	tx := makeTx("tx-current", 60, baseTime.Add(time.Minute))

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(prev))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f != nil {
		t.Error("expected absent outcome when no geolocation is present")
	}
}

func TestGeoAbsentWithEmptyHistory(t *testing.T) {
	d := NewGeoImpossibility(testConfig())

	tx := makeTx("tx-current", 60, baseTime)
	tx.Location = &domain.Geolocation{Lat: 40.7, Lon: -74.0}

	f, err := d.Analyze(context.Background(), &tx, snapshotOf())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f != nil {
		t.Error("expected absent outcome for empty history")
	}
}

func TestVelocitySpike(t *testing.T) {
	d := NewVelocity(testConfig())

	// Sparse baseline over a month, then a dense burst in the last hour.
	var history []domain.Transaction
	for i := 0; i < 20; i++ {
		history = append(history, makeTx(fmt.Sprintf("base-%d", i), 40, baseTime.Add(-time.Duration(30-i)*24*time.Hour)))
	}
	for i := 0; i < 15; i++ {
		history = append(history, makeTx(fmt.Sprintf("burst-%d", i), 40, baseTime.Add(-time.Duration(15-i)*time.Minute)))
	}

	tx := makeTx("tx-current", 40, baseTime)
	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil {
		t.Fatal("expected a finding for a rate spike")
	}
	if f.ReasonCode != domain.ReasonVelocitySpike {
		t.Errorf("expected velocity spike reason, got %s", f.ReasonCode)
	}
	if f.Severity <= 0 {
		t.Errorf("expected positive severity, got %.2f", f.Severity)
	}
}

func TestVelocityAbsentForShortHistory(t *testing.T) {
	d := NewVelocity(testConfig())

	history := []domain.Transaction{
		makeTx("tx-0", 40, baseTime.Add(-time.Hour)),
		makeTx("tx-1", 40, baseTime.Add(-30*time.Minute)),
	}
	tx := makeTx("tx-current", 40, baseTime)

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f != nil {
		t.Error("expected absent outcome below the baseline minimum")
	}
}

func TestCategoryAnomalyNovelExpensive(t *testing.T) {
	d := NewCategoryAnomaly(testConfig())

	var history []domain.Transaction
	for i := 0; i < 50; i++ {
		history = append(history, makeTx(fmt.Sprintf("tx-%d", i), 30+float64(i%10), baseTime.Add(-time.Duration(i)*24*time.Hour)))
	}

	tx := makeTx("tx-current", 900, baseTime)
	tx.MerchantCategory = "jewelry"

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil {
		t.Fatal("expected a finding for an expensive novel category")
	}
	if f.ReasonCode != domain.ReasonCategoryAnomaly {
		t.Errorf("expected category anomaly reason, got %s", f.ReasonCode)
	}
}

func TestCategoryAnomalyFamiliarCategory(t *testing.T) {
	d := NewCategoryAnomaly(testConfig())

	var history []domain.Transaction
	for i := 0; i < 50; i++ {
		history = append(history, makeTx(fmt.Sprintf("tx-%d", i), 30, baseTime.Add(-time.Duration(i)*24*time.Hour)))
	}

	// Familiar category, even with a high amount.
	tx := makeTx("tx-current", 900, baseTime)

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.Severity != 0 {
		t.Error("familiar category should evaluate clean regardless of amount")
	}
}

func TestCategoryAnomalyAbsentForThinHistory(t *testing.T) {
	d := NewCategoryAnomaly(testConfig())

	history := []domain.Transaction{makeTx("tx-0", 30, baseTime.Add(-24*time.Hour))}
	tx := makeTx("tx-current", 900, baseTime)
	tx.MerchantCategory = "jewelry"

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f != nil {
		t.Error("expected absent outcome for a profile below minimum history")
	}
}

func TestTemporalAnomalyOffHours(t *testing.T) {
	d := NewTemporalAnomaly(testConfig())

	// All history at 14:00 UTC.
	var history []domain.Transaction
	for i := 0; i < 30; i++ {
		history = append(history, makeTx(fmt.Sprintf("tx-%d", i), 40, baseTime.Add(-time.Duration(i)*24*time.Hour)))
	}

	// 03:00 UTC, well outside the active envelope.
	tx := makeTx("tx-current", 500, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC))

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil {
		t.Fatal("expected a finding for material off-hours activity")
	}
	if f.ReasonCode != domain.ReasonOffHoursActivity {
		t.Errorf("expected off-hours reason, got %s", f.ReasonCode)
	}
}

func TestTemporalAnomalySmallAmountPasses(t *testing.T) {
	d := NewTemporalAnomaly(testConfig())

	var history []domain.Transaction
	for i := 0; i < 30; i++ {
		history = append(history, makeTx(fmt.Sprintf("tx-%d", i), 40, baseTime.Add(-time.Duration(i)*24*time.Hour)))
	}

	tx := makeTx("tx-current", 5, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC))

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.Severity != 0 {
		t.Error("small off-hours purchases should evaluate clean")
	}
}

func TestTemporalAnomalyAbsentWithoutEnvelope(t *testing.T) {
	d := NewTemporalAnomaly(testConfig())

	history := []domain.Transaction{makeTx("tx-0", 40, baseTime.Add(-24*time.Hour))}
	tx := makeTx("tx-current", 500, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC))

	f, err := d.Analyze(context.Background(), &tx, snapshotOf(history...))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f != nil {
		t.Error("expected absent outcome before an active-hours envelope exists")
	}
}

func TestMerchantBlacklist(t *testing.T) {
	cfg := testConfig()
	cfg.Merchant.Blacklist = []string{"Shady Outlet"}
	d := NewMerchantScreening(cfg)

	tx := makeTx("tx-current", 40, baseTime)
	tx.Merchant = "shady outlet" // matching is case-insensitive

	f, err := d.Analyze(context.Background(), &tx, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.ReasonCode != domain.ReasonMerchantBlacklist {
		t.Fatal("expected a blacklist finding")
	}
	if f.Severity != 1.0 {
		t.Errorf("blacklist hits are definitive, got severity %.2f", f.Severity)
	}
}

func TestMerchantHighRiskCategory(t *testing.T) {
	d := NewMerchantScreening(testConfig())

	tx := makeTx("tx-current", 200, baseTime)
	tx.MerchantCategory = "cash_advance"

	f, err := d.Analyze(context.Background(), &tx, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.ReasonCode != domain.ReasonMerchantHighRisk {
		t.Fatal("expected a high-risk category finding")
	}
	if f.Severity != 0.9 {
		t.Errorf("expected severity equal to category risk 0.9, got %.2f", f.Severity)
	}
}

func TestMerchantLowRiskClean(t *testing.T) {
	d := NewMerchantScreening(testConfig())

	tx := makeTx("tx-current", 40, baseTime) // grocery

	f, err := d.Analyze(context.Background(), &tx, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.Severity != 0 {
		t.Error("grocery should evaluate clean")
	}
}

func TestCompileRules(t *testing.T) {
	rules := []domain.CustomRule{
		{ID: "big-amount", Expression: "amount > 1000.0", Weight: 0.8, Enabled: true},
		{ID: "disabled", Expression: "true", Weight: 1.0, Enabled: false},
	}

	compiled, err := CompileRules(rules)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(compiled) != 1 {
		t.Fatalf("expected 1 compiled rule, got %d", len(compiled))
	}
	if compiled[0].Name() != "rule:big-amount" {
		t.Errorf("unexpected detector name %s", compiled[0].Name())
	}
}

func TestCompileRulesInvalidExpression(t *testing.T) {
	rules := []domain.CustomRule{
		{ID: "broken", Expression: "this is not CEL !!!", Enabled: true},
	}
	if _, err := CompileRules(rules); err == nil {
		t.Error("expected compile error for invalid expression")
	}
}

func TestCustomRuleEvaluation(t *testing.T) {
	rules := []domain.CustomRule{
		{ID: "foreign-big", Expression: "currency != 'USD' && amount > 500.0", Weight: 0.7, Enabled: true},
	}
	compiled, err := CompileRules(rules)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	d := compiled[0]

	tx := makeTx("tx-current", 900, baseTime)
	tx.Currency = "EUR"

	f, err := d.Analyze(context.Background(), &tx, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.ReasonCode != domain.ReasonCustomRule {
		t.Fatal("expected a custom rule finding")
	}
	if f.Severity != 1.0 {
		t.Errorf("boolean rules fire at full severity, got %.2f", f.Severity)
	}

	// Same rule, non-matching transaction.
	clean := makeTx("tx-clean", 900, baseTime)
	f, err = d.Analyze(context.Background(), &clean, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.Severity != 0 {
		t.Error("non-matching rule should evaluate clean")
	}
}

func TestCustomRuleFractionalScore(t *testing.T) {
	rules := []domain.CustomRule{
		{ID: "scaled", Expression: "amount > 100.0 ? 0.6 : 0.0", Weight: 1.0, Enabled: true},
	}
	compiled, err := CompileRules(rules)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	tx := makeTx("tx-current", 250, baseTime)
	f, err := compiled[0].Analyze(context.Background(), &tx, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f == nil || f.Severity != 0.6 {
		t.Fatalf("expected severity 0.6 from fractional rule, got %+v", f)
	}
}
