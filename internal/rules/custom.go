package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/harrierhq/harrier/internal/domain"
)

// CustomEngine evaluates org-defined CEL rules on top of the built-in
// table. Expressions see the same detector outputs the fixed rules do.
type CustomEngine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledCustomRule
}

type compiledCustomRule struct {
	config  *domain.CustomRuleConfig
	program cel.Program
}

// NewCustomEngine creates a CEL engine with the detector-output variables
// declared.
func NewCustomEngine() (*CustomEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.IntType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("duplicate_score", cel.DoubleType),
		cel.Variable("is_duplicate", cel.BoolType),
		cel.Variable("anomaly_score", cel.DoubleType),
		cel.Variable("is_anomaly", cel.BoolType),
		cel.Variable("acceleration_rate", cel.DoubleType),
		cel.Variable("round_amount_ratio", cel.DoubleType),
		cel.Variable("merchant_concentration", cel.DoubleType),
		cel.Variable("weekend_ratio", cel.DoubleType),
		cel.Variable("threshold_exceeded", cel.BoolType),
		cel.Variable("threshold_warning", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomEngine{
		env:           env,
		compiledRules: make(map[string]*compiledCustomRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *CustomEngine) ValidateRule(cfg *domain.CustomRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *CustomEngine) LoadRule(cfg *domain.CustomRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled rules from a set.
func (e *CustomEngine) LoadRules(configs []*domain.CustomRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules swaps all loaded rules for the given set atomically.
func (e *CustomEngine) ReloadRules(configs []*domain.CustomRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*compiledCustomRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *CustomEngine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *CustomEngine) LoadedRules() []*domain.CustomRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.CustomRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		configs = append(configs, compiled.config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

// EvaluateMatches runs every loaded rule for the org (plus global rules)
// against the context. An expression error degrades to "rule did not
// match", logged but never fatal to sibling rules.
func (e *CustomEngine) EvaluateMatches(ctx *Context) []*domain.CustomRuleConfig {
	e.mu.RLock()
	loaded := make([]*compiledCustomRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		loaded = append(loaded, r)
	}
	e.mu.RUnlock()

	// Rules live in a map keyed by ID; evaluate them in ID order so the
	// alert sequence for a given transaction is stable across calls.
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].config.ID < loaded[j].config.ID })

	if len(loaded) == 0 {
		return nil
	}

	activation := map[string]any{
		"amount":                 ctx.Transaction.Amount,
		"currency":               ctx.Transaction.Currency,
		"category":               ctx.Transaction.CategoryCode,
		"merchant":               ctx.Transaction.MerchantName,
		"duplicate_score":        ctx.Duplicate.DuplicateScore,
		"is_duplicate":           ctx.Duplicate.IsDuplicate,
		"anomaly_score":          ctx.Anomaly.Score,
		"is_anomaly":             ctx.Anomaly.IsAnomaly,
		"acceleration_rate":      ctx.Velocity.AccelerationRate,
		"round_amount_ratio":     ctx.Pattern.RoundAmountRatio,
		"merchant_concentration": ctx.Pattern.MerchantConcentration,
		"weekend_ratio":          ctx.Pattern.WeekendTransactionRatio,
		"threshold_exceeded":     ctx.Threshold != nil && ctx.Threshold.HasExceeded,
		"threshold_warning":      ctx.Threshold != nil && ctx.Threshold.HasWarning,
	}

	var matched []*domain.CustomRuleConfig
	for _, r := range loaded {
		if r.config.OrgID != domain.GlobalOrgID && r.config.OrgID != ctx.Transaction.OrgID {
			continue
		}

		out, _, err := r.program.Eval(activation)
		if err != nil {
			slog.Warn("custom rule evaluation failed",
				"rule", r.config.Name,
				"transaction_id", ctx.Transaction.ID,
				"error", err,
			)
			continue
		}

		if b, ok := out.(types.Bool); ok && bool(b) {
			matched = append(matched, r.config)
		}
	}

	return matched
}

func (e *CustomEngine) compileRule(cfg *domain.CustomRuleConfig) (*compiledCustomRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledCustomRule{config: cfg, program: program}, nil
}
