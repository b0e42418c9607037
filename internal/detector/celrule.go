package detector

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// CustomRule is an operator-defined CEL expression running as an
// extra detector alongside the built-ins. The expression evaluates to
// a bool (fires at full configured weight) or a double in [0,1]
// (scaled severity).
type CustomRule struct {
	cfg     domain.CustomRule
	program cel.Program
}

// newRuleEnv builds the CEL environment exposing transaction and
// profile variables to rule expressions.
func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("history_count", cel.IntType),
		cel.Variable("mean_amount", cel.DoubleType),
		cel.Variable("stddev_amount", cel.DoubleType),
		cel.Variable("p90_amount", cel.DoubleType),
	)
}

// CompileRules compiles the enabled custom rules into detectors. A
// rule that fails to compile aborts startup rather than silently
// dropping coverage.
func CompileRules(rules []domain.CustomRule) ([]*CustomRule, error) {
	var enabled []domain.CustomRule
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	if len(enabled) == 0 {
		return nil, nil
	}

	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]*CustomRule, 0, len(enabled))
	for _, r := range enabled {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: compile failed: %w", r.ID, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: program failed: %w", r.ID, err)
		}
		compiled = append(compiled, &CustomRule{cfg: r, program: prg})
	}
	return compiled, nil
}

func (d *CustomRule) Name() string          { return "rule:" + d.cfg.ID }
func (d *CustomRule) RequiresHistory() bool { return false }

// Weight is the scoring weight configured on the rule. Registered
// with the scoring engine under the rule's detector name.
func (d *CustomRule) Weight() float64 { return d.cfg.Weight }

// Analyze evaluates the rule expression against the transaction and
// whatever profile statistics are available. A nil history evaluates
// with zeroed profile variables.
func (d *CustomRule) Analyze(_ context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error) {
	activation := map[string]any{
		"tx": map[string]any{
			"id":       tx.ID,
			"user_id":  tx.UserID,
			"amount":   tx.Amount,
			"currency": tx.Currency,
			"merchant": tx.Merchant,
			"category": tx.MerchantCategory,
			"channel":  string(tx.Channel),
		},
		"amount":        tx.Amount,
		"currency":      tx.Currency,
		"merchant":      tx.Merchant,
		"category":      tx.MerchantCategory,
		"channel":       string(tx.Channel),
		"hour":          int64(tx.HourUTC()),
		"history_count": int64(0),
		"mean_amount":   0.0,
		"stddev_amount": 0.0,
		"p90_amount":    0.0,
	}
	if history != nil {
		activation["history_count"] = int64(history.Stats.Count)
		activation["mean_amount"] = history.Stats.MeanAmount
		activation["stddev_amount"] = history.Stats.StdDevAmount
		activation["p90_amount"] = history.Stats.P90Amount
	}

	out, _, err := d.program.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("rule %s: evaluation error: %w", d.cfg.ID, err)
	}

	severity := clamp01(toScore(out))
	evidence := map[string]any{
		"rule_id":    d.cfg.ID,
		"expression": d.cfg.Expression,
	}
	if d.cfg.Description != "" {
		evidence["description"] = d.cfg.Description
	}

	if severity == 0 {
		return clear(d.Name(), 0.85, evidence), nil
	}

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   severity,
		Confidence: 0.85,
		ReasonCode: domain.ReasonCustomRule,
		Evidence:   evidence,
	}, nil
}

// toScore converts a CEL value to a numeric severity.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}
