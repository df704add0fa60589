// Package rules holds the declarative fraud rule table and its evaluator,
// plus the CEL engine for org-defined custom rules.
package rules

import (
	"log/slog"

	"github.com/harrierhq/harrier/internal/domain"
)

// Context carries the merged detector outputs for one transaction. Rule
// conditions are pure predicates over this value.
type Context struct {
	Transaction domain.Transaction
	Duplicate   domain.DuplicateCheck
	Threshold   *domain.ThresholdStatus
	Anomaly     domain.AnomalyScore
	Velocity    domain.VelocityCheck
	Pattern     domain.PatternCheck
	Config      domain.FraudPreventionConfig
}

// Rule is one entry of the fixed detection table: a named predicate with a
// severity and an evidence generator. Rules are independent; evaluation
// order never affects which rules match.
type Rule struct {
	Name     string
	Type     string
	Severity domain.Severity
	Title    string

	Condition   func(*Context) bool
	Description func(*Context) string
	Evidence    func(*Context) []domain.FraudEvidence
}

// Evaluate runs every rule against the context and returns the matches.
// A panicking condition is logged and treated as "rule did not match";
// one faulty rule never aborts its siblings.
func Evaluate(table []Rule, ctx *Context) []Rule {
	var matched []Rule
	for i := range table {
		if safeCondition(&table[i], ctx) {
			matched = append(matched, table[i])
		}
	}
	return matched
}

func safeCondition(r *Rule, ctx *Context) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rule condition panicked",
				"rule", r.Name,
				"transaction_id", ctx.Transaction.ID,
				"panic", rec,
			)
			ok = false
		}
	}()
	return r.Condition(ctx)
}

// HighestSeverity returns the most severe entry of the matched rules,
// or INFO when nothing matched.
func HighestSeverity(matched []Rule) domain.Severity {
	highest := domain.SeverityInfo
	for i := range matched {
		if matched[i].Severity.Rank() > highest.Rank() {
			highest = matched[i].Severity
		}
	}
	return highest
}
