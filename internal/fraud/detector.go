// Package fraud implements the fraud check orchestrator. It runs the five
// detection signals, evaluates the rule table, and produces a deterministic,
// explainable disposition for each transaction.
package fraud

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrierhq/harrier/internal/detect"
	"github.com/harrierhq/harrier/internal/domain"
	"github.com/harrierhq/harrier/internal/rules"
	"github.com/harrierhq/harrier/internal/thresholds"
)

// Detector names recorded in ChecksPerformed, for audit completeness.
const (
	CheckDuplicate = "duplicate"
	CheckThreshold = "threshold"
	CheckAnomaly   = "anomaly"
	CheckVelocity  = "velocity"
	CheckPattern   = "pattern"
	CheckCustom    = "custom_rules"
)

// Detector orchestrates the detection signals and the rule table.
// It performs no I/O; all data arrives as in-memory arguments and all
// output is returned in-memory.
type Detector struct {
	cfg        domain.FraudPreventionConfig
	thresholds *thresholds.Provider
	table      []rules.Rule
	custom     *rules.CustomEngine // optional

	// Now supplies CheckedAt timestamps; replaceable for deterministic tests.
	Now func() time.Time
}

// New creates a fraud detector. custom may be nil when no org-defined
// rules are in play.
func New(cfg domain.FraudPreventionConfig, provider *thresholds.Provider, custom *rules.CustomEngine) *Detector {
	return &Detector{
		cfg:        cfg,
		thresholds: provider,
		table:      rules.BuiltinTable(cfg),
		custom:     custom,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// CheckTransaction inspects one transaction against the claimant's history
// and the country's spending policies. History is read-only input; the
// same inputs always produce the same alerts, scores, and disposition.
func (d *Detector) CheckTransaction(tx domain.Transaction, history []domain.Transaction, countryCode string) domain.FraudCheckResult {
	ruleCtx := &rules.Context{
		Transaction: tx,
		Config:      d.cfg,
	}

	// The detectors are pure and independent; run them concurrently.
	var wg sync.WaitGroup
	wg.Add(5)
	go func() {
		defer wg.Done()
		ruleCtx.Duplicate = detect.CheckDuplicate(d.cfg, tx, history)
	}()
	go func() {
		defer wg.Done()
		policy := d.thresholds.Resolve(countryCode, tx.CategoryCode)
		ruleCtx.Threshold = detect.MonitorThresholds(tx, history, policy)
	}()
	go func() {
		defer wg.Done()
		ruleCtx.Anomaly = detect.ScoreAnomaly(d.cfg, tx, history)
	}()
	go func() {
		defer wg.Done()
		ruleCtx.Velocity = detect.CheckVelocity(d.cfg, tx.Date, history)
	}()
	go func() {
		defer wg.Done()
		ruleCtx.Pattern = detect.AnalyzePatterns(d.cfg, tx, history)
	}()
	wg.Wait()

	checksPerformed := []string{CheckDuplicate, CheckThreshold, CheckAnomaly, CheckVelocity, CheckPattern}

	matched := rules.Evaluate(d.table, ruleCtx)

	checkedAt := d.Now()
	alerts := make([]domain.FraudAlert, 0, len(matched))
	for i := range matched {
		alerts = append(alerts, d.buildAlert(&matched[i], ruleCtx, checkedAt))
	}

	if d.custom != nil && d.custom.RulesCount() > 0 {
		checksPerformed = append(checksPerformed, CheckCustom)
		for _, cfg := range d.custom.EvaluateMatches(ruleCtx) {
			alerts = append(alerts, d.buildCustomAlert(cfg, tx, checkedAt))
		}
	}

	action := d.decide(matched, alerts, tx)

	return domain.FraudCheckResult{
		TransactionID:     tx.ID,
		OrgID:             tx.OrgID,
		HasFraudSignals:   len(alerts) > 0,
		DuplicateCheck:    ruleCtx.Duplicate,
		ThresholdStatus:   ruleCtx.Threshold,
		AnomalyScore:      ruleCtx.Anomaly,
		VelocityCheck:     ruleCtx.Velocity,
		PatternCheck:      ruleCtx.Pattern,
		Alerts:            alerts,
		RecommendedAction: action,
		BlockedBySystem:   action == domain.ActionBlock,
		CheckedAt:         checkedAt,
		ChecksPerformed:   checksPerformed,
	}
}

// CheckBatch checks transactions sequentially, folding each one into the
// rolling history before the next check. Duplicates are defined relative
// to everything seen so far, not just the caller-supplied history, so the
// batch must not be parallelized.
func (d *Detector) CheckBatch(txs []domain.Transaction, history []domain.Transaction, countryCode string) []domain.FraudCheckResult {
	rolling := make([]domain.Transaction, len(history), len(history)+len(txs))
	copy(rolling, history)

	results := make([]domain.FraudCheckResult, 0, len(txs))
	for i := range txs {
		results = append(results, d.CheckTransaction(txs[i], rolling, countryCode))
		rolling = append(rolling, txs[i])
	}
	return results
}

// decide applies the disposition precedence, first match wins:
// CRITICAL -> BLOCK; HIGH or review ceiling or review category -> REVIEW;
// any alert -> WARN; otherwise ALLOW.
func (d *Detector) decide(matched []rules.Rule, alerts []domain.FraudAlert, tx domain.Transaction) domain.Action {
	if rules.HighestSeverity(matched) == domain.SeverityCritical || anyAlertAtLeast(alerts, domain.SeverityCritical) {
		return domain.ActionBlock
	}

	if anyAlertAtLeast(alerts, domain.SeverityHigh) ||
		(d.cfg.RequireReviewAbove > 0 && tx.Amount > d.cfg.RequireReviewAbove) ||
		d.cfg.RequiresReviewCategory(tx.CategoryCode) {
		return domain.ActionReview
	}

	if len(alerts) > 0 {
		return domain.ActionWarn
	}

	return domain.ActionAllow
}

func anyAlertAtLeast(alerts []domain.FraudAlert, sev domain.Severity) bool {
	for i := range alerts {
		if alerts[i].Severity.AtLeast(sev) {
			return true
		}
	}
	return false
}

// buildAlert converts a matched rule into an alert record. A panicking
// description or evidence generator degrades to generic text; every alert
// carries at least one evidence item.
func (d *Detector) buildAlert(rule *rules.Rule, ctx *rules.Context, at time.Time) domain.FraudAlert {
	alert := domain.FraudAlert{
		ID:                uuid.New().String(),
		Type:              rule.Type,
		Severity:          rule.Severity,
		TransactionID:     ctx.Transaction.ID,
		OrgID:             ctx.Transaction.OrgID,
		Title:             rule.Title,
		Description:       safeDescription(rule, ctx),
		Evidence:          safeEvidence(rule, ctx),
		Status:            domain.AlertStatusPending,
		CreatedAt:         at,
		RecommendedAction: actionForSeverity(rule.Severity),
	}

	if len(alert.Evidence) == 0 {
		alert.Evidence = []domain.FraudEvidence{{Label: "rule", Value: rule.Name}}
	}

	return alert
}

func (d *Detector) buildCustomAlert(cfg *domain.CustomRuleConfig, tx domain.Transaction, at time.Time) domain.FraudAlert {
	description := cfg.Description
	if description == "" {
		description = "Custom rule matched: " + cfg.Expression
	}

	return domain.FraudAlert{
		ID:            uuid.New().String(),
		Type:          domain.AlertTypeCustomRule,
		Severity:      cfg.Severity,
		TransactionID: tx.ID,
		OrgID:         tx.OrgID,
		Title:         cfg.Name,
		Description:   description,
		Evidence: []domain.FraudEvidence{
			{Label: "rule_id", Value: cfg.ID},
			{Label: "expression", Value: cfg.Expression},
		},
		Status:            domain.AlertStatusPending,
		CreatedAt:         at,
		RecommendedAction: actionForSeverity(cfg.Severity),
	}
}

// actionForSeverity is the per-alert implicit recommendation; the overall
// disposition is computed separately by decide.
func actionForSeverity(sev domain.Severity) domain.Action {
	switch sev {
	case domain.SeverityCritical:
		return domain.ActionBlock
	case domain.SeverityHigh:
		return domain.ActionReview
	default:
		return domain.ActionWarn
	}
}

func safeDescription(rule *rules.Rule, ctx *rules.Context) (desc string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rule description panicked", "rule", rule.Name, "panic", rec)
			desc = rule.Title
		}
	}()
	return rule.Description(ctx)
}

func safeEvidence(rule *rules.Rule, ctx *rules.Context) (ev []domain.FraudEvidence) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rule evidence panicked", "rule", rule.Name, "panic", rec)
			ev = nil
		}
	}()
	return rule.Evidence(ctx)
}
