package domain

// CustomRuleConfig is an org-defined detection rule layered on top of the
// built-in rule table. The expression is a CEL predicate over the merged
// detector outputs; a true result raises an alert with the configured
// severity.
type CustomRuleConfig struct {
	ID          string `json:"id"`
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Expression is a CEL boolean expression. Available variables:
	// amount, currency, category, merchant, duplicate_score, is_duplicate,
	// anomaly_score, is_anomaly, acceleration_rate, round_amount_ratio,
	// merchant_concentration, weekend_ratio, threshold_exceeded,
	// threshold_warning.
	Expression string `json:"expression"`

	Severity Severity `json:"severity"`
	Enabled  bool     `json:"enabled"`
}

// GlobalOrgID marks custom rules that apply to every org.
const GlobalOrgID = "*"
