package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// fakeDetector is a scriptable detector for executor tests.
type fakeDetector struct {
	name    string
	history bool
	finding *domain.Finding
	err     error
	delay   time.Duration
	panics  bool
}

func (f *fakeDetector) Name() string          { return f.name }
func (f *fakeDetector) RequiresHistory() bool { return f.history }

func (f *fakeDetector) Analyze(ctx context.Context, _ *domain.Transaction, _ *domain.ProfileSnapshot) (*domain.Finding, error) {
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.finding, f.err
}

func testTx() *domain.Transaction {
	return &domain.Transaction{
		ID:        "tx-1",
		UserID:    "user-1",
		Amount:    42,
		Currency:  "USD",
		Timestamp: time.Now().UTC(),
	}
}

func TestDispatchFinding(t *testing.T) {
	want := &domain.Finding{Detector: "fake", Severity: 0.5, Confidence: 0.8}
	ex := NewLocalExecutor(&fakeDetector{name: "fake", finding: want})

	resp := ex.Dispatch(context.Background(), Request{Tool: "fake", Tx: testTx()})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	if resp.Absent {
		t.Fatal("expected a finding, got absent")
	}
	if resp.Finding != want {
		t.Error("finding not passed through")
	}
}

func TestDispatchAbsent(t *testing.T) {
	ex := NewLocalExecutor(&fakeDetector{name: "fake"})

	resp := ex.Dispatch(context.Background(), Request{Tool: "fake", Tx: testTx()})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	if !resp.Absent {
		t.Error("nil finding with nil error must map to absent")
	}
}

func TestDispatchDetectorError(t *testing.T) {
	ex := NewLocalExecutor(&fakeDetector{name: "fake", err: errors.New("backend down")})

	resp := ex.Dispatch(context.Background(), Request{Tool: "fake", Tx: testTx()})
	if resp.Err == nil {
		t.Fatal("expected a dispatch error")
	}
	if resp.Err.Code != CodeInternalFailure {
		t.Errorf("expected internal failure, got %s", resp.Err.Code)
	}
}

func TestDispatchPanicRecovered(t *testing.T) {
	ex := NewLocalExecutor(&fakeDetector{name: "fake", panics: true})

	resp := ex.Dispatch(context.Background(), Request{Tool: "fake", Tx: testTx()})
	if resp.Err == nil || resp.Err.Code != CodeInternalFailure {
		t.Fatalf("expected internal failure from panic, got %+v", resp.Err)
	}
}

func TestDispatchTimeout(t *testing.T) {
	ex := NewLocalExecutor(&fakeDetector{name: "slow", delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := ex.Dispatch(ctx, Request{Tool: "slow", Tx: testTx()})
	if resp.Err == nil || resp.Err.Code != CodeTimeout {
		t.Fatalf("expected timeout, got %+v", resp.Err)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	ex := NewLocalExecutor()

	resp := ex.Dispatch(context.Background(), Request{Tool: "missing", Tx: testTx()})
	if resp.Err == nil || resp.Err.Code != CodeInvalidInput {
		t.Fatalf("expected invalid input for unknown tool, got %+v", resp.Err)
	}
}

func TestToolsSorted(t *testing.T) {
	ex := NewLocalExecutor(
		&fakeDetector{name: "zeta"},
		&fakeDetector{name: "alpha"},
		&fakeDetector{name: "mid"},
	)

	names := ex.Tools()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestRequiresHistory(t *testing.T) {
	ex := NewLocalExecutor(
		&fakeDetector{name: "needs", history: true},
		&fakeDetector{name: "standalone"},
	)

	if !ex.RequiresHistory("needs") {
		t.Error("expected needs to require history")
	}
	if ex.RequiresHistory("standalone") {
		t.Error("standalone must not require history")
	}
	if ex.RequiresHistory("missing") {
		t.Error("unknown tools must not require history")
	}
}
