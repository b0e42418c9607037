// Package coordinator runs the analysis lifecycle for a transaction:
// fan out detector tasks, collect findings and misses, aggregate a
// verdict, and persist the scored transaction.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// EngineVersion is stamped into verdict metadata.
const EngineVersion = "kestrel-1.0"

// State is the lifecycle phase of one analysis request. Exposed for
// logging and tests; a request always ends Complete or Degraded.
type State string

const (
	StateDispatched  State = "dispatched"
	StateCollecting  State = "collecting"
	StateAggregating State = "aggregating"
	StateComplete    State = "complete"
	StateDegraded    State = "degraded"
)

// Coordinator owns the analysis request lifecycle. Safe for
// concurrent use; all per-request state lives on the stack.
type Coordinator struct {
	executor  dispatch.ToolExecutor
	scorer    *scoring.Engine
	history   domain.HistoryStore
	bus       domain.EventBus
	assembler *report.Assembler
	cfg       domain.CoordinatorConfig
	logger    *slog.Logger

	// userLocks serializes profile appends per user id so concurrent
	// analyses for the same user cannot lose updates.
	userLocks sync.Map // userID -> *sync.Mutex
}

// New creates a coordinator. The bus and assembler are optional; a
// nil bus publishes nothing and a nil assembler leaves explanations
// empty.
func New(
	executor dispatch.ToolExecutor,
	scorer *scoring.Engine,
	history domain.HistoryStore,
	bus domain.EventBus,
	assembler *report.Assembler,
	cfg domain.CoordinatorConfig,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Specialists {
		// Sub-aggregates are already weighted; forward them as-is.
		scorer.RegisterWeight(domain.SpecialistPattern, 1)
		scorer.RegisterWeight(domain.SpecialistRisk, 1)
	}
	return &Coordinator{
		executor:  executor,
		scorer:    scorer,
		history:   history,
		bus:       bus,
		assembler: assembler,
		cfg:       cfg,
		logger:    logger,
	}
}

// Analyze runs the full decision cycle for one transaction. Invalid
// input returns domain.ErrInvalidInput without invoking detectors;
// every other failure mode degrades into the verdict itself.
func (c *Coordinator) Analyze(ctx context.Context, tx *domain.Transaction) (*domain.Verdict, error) {
	start := time.Now()

	if err := tx.Validate(start, c.cfg.FutureTolerance); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestDeadline)
	defer cancel()

	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	// Load history once; all detectors share the same read-only
	// snapshot, so the decision is deterministic for this cycle.
	snapshot, historyOK := c.loadSnapshot(ctx, tx.UserID)

	tools := c.executor.Tools()
	c.logger.Debug("analysis dispatched",
		"txId", tx.ID, "userId", tx.UserID, "state", StateDispatched,
		"detectors", len(tools), "historyAvailable", historyOK)

	dispatchStart := time.Now()
	var findings []domain.Finding
	var misses []domain.Miss
	if c.cfg.Specialists {
		findings, misses = c.runSpecialists(ctx, tx, snapshot, historyOK)
	} else {
		findings, misses = c.runDetectors(ctx, tools, tx, snapshot, historyOK)
	}
	dispatchMs := time.Since(dispatchStart).Milliseconds()

	c.logger.Debug("analysis aggregating",
		"txId", tx.ID, "state", StateAggregating,
		"findings", len(findings), "misses", len(misses))

	outcome := c.scorer.Combine(findings, misses)

	degraded := len(tools) > 0 &&
		float64(len(misses))/float64(len(tools)) > c.cfg.MissTolerance
	classification := outcome.Classification
	if degraded {
		// Never claim a confident result on incomplete evidence.
		classification = domain.ClassSuspicious
	}

	verdict := &domain.Verdict{
		ID:             uuid.New().String(),
		TxID:           tx.ID,
		UserID:         tx.UserID,
		Score:          outcome.Score,
		Classification: classification,
		Confidence:     outcome.Confidence,
		Findings:       outcome.Findings,
		Misses:         misses,
		Degraded:       degraded,
		Timestamp:      time.Now().UTC(),
		Metadata: domain.VerdictMetadata{
			TraceID:       traceID,
			DetectorsRun:  len(tools),
			DispatchMs:    dispatchMs,
			TotalMs:       time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}

	if c.assembler != nil {
		verdict.Explanation = c.assembler.Explain(ctx, c.assembler.Assemble(verdict))
	}

	c.finalize(ctx, tx, verdict)

	state := StateComplete
	if degraded {
		state = StateDegraded
		metrics.DegradedVerdictsTotal.Inc()
	}
	metrics.VerdictsTotal.WithLabelValues(string(verdict.Classification)).Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	c.logger.Info("analysis finished",
		"txId", tx.ID, "userId", tx.UserID, "state", state,
		"classification", verdict.Classification,
		"score", verdict.Score, "confidence", verdict.Confidence,
		"totalMs", verdict.Metadata.TotalMs)

	return verdict, nil
}

// AnalyzeBatch analyzes transactions in input order. It never fails
// for an individual bad transaction: invalid inputs yield a sentinel
// error-classification verdict in place, so callers can partition
// successes from failures deterministically.
func (c *Coordinator) AnalyzeBatch(ctx context.Context, txs []domain.Transaction) []domain.Verdict {
	verdicts := make([]domain.Verdict, len(txs))
	for i := range txs {
		v, err := c.Analyze(ctx, &txs[i])
		if err != nil {
			verdicts[i] = domain.Verdict{
				ID:             uuid.New().String(),
				TxID:           txs[i].ID,
				UserID:         txs[i].UserID,
				Classification: domain.ClassError,
				Error:          err.Error(),
				Timestamp:      time.Now().UTC(),
				Metadata:       domain.VerdictMetadata{EngineVersion: EngineVersion},
			}
			metrics.VerdictsTotal.WithLabelValues(string(domain.ClassError)).Inc()
			continue
		}
		verdicts[i] = *v
	}
	return verdicts
}

// loadSnapshot fetches the user profile, degrading to a zero-history
// snapshot when the data source is unavailable.
func (c *Coordinator) loadSnapshot(ctx context.Context, userID string) (*domain.ProfileSnapshot, bool) {
	profile, err := c.history.GetProfile(ctx, userID)
	if err != nil {
		c.logger.Warn("history unavailable, degrading to zero-history profile",
			"userId", userID, "error", err)
		empty := &domain.UserProfile{UserID: userID}
		return empty.Snapshot(), false
	}
	return profile.Snapshot(), true
}

// runDetectors fans out one task per tool and collects results at
// the barrier. History-dependent tools are not dispatched when the
// history lookup failed; they are recorded as data-unavailable
// misses instead.
func (c *Coordinator) runDetectors(ctx context.Context, tools []string, tx *domain.Transaction, snapshot *domain.ProfileSnapshot, historyOK bool) ([]domain.Finding, []domain.Miss) {
	responses := make(chan dispatch.Response, len(tools))
	var wg sync.WaitGroup

	var misses []domain.Miss
	for _, tool := range tools {
		if !historyOK && c.executor.RequiresHistory(tool) {
			misses = append(misses, domain.Miss{
				Detector: tool,
				Reason:   domain.MissNoData,
				Detail:   "history lookup failed",
			})
			continue
		}

		wg.Add(1)
		go func(tool string) {
			defer wg.Done()

			taskCtx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
			defer cancel()

			responses <- c.executor.Dispatch(taskCtx, dispatch.Request{
				Tool:     tool,
				Tx:       tx,
				Snapshot: snapshot,
			})
		}(tool)
	}

	wg.Wait()
	close(responses)

	var findings []domain.Finding
	for resp := range responses {
		switch {
		case resp.Err != nil:
			misses = append(misses, missFromError(resp.Err))
		case resp.Absent:
			// Not applicable to this input; neither finding nor miss.
		case resp.Finding != nil:
			findings = append(findings, *resp.Finding)
		}
	}

	for _, m := range misses {
		metrics.DetectorMissesTotal.WithLabelValues(m.Detector, string(m.Reason)).Inc()
	}
	return findings, misses
}

func missFromError(err *dispatch.Error) domain.Miss {
	reason := domain.MissFailure
	switch err.Code {
	case dispatch.CodeTimeout:
		reason = domain.MissTimeout
	case dispatch.CodeInvalidInput:
		reason = domain.MissFailure
	}
	return domain.Miss{Detector: err.Tool, Reason: reason, Detail: err.Detail}
}
