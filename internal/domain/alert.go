package domain

import (
	"time"
)

// Severity ranks how serious a fraud signal is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// severityRank imposes the total order CRITICAL > HIGH > WARNING > INFO.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityWarning:  2,
	SeverityInfo:     1,
}

// Rank returns the numeric position of a severity in the total order.
// Unknown severities rank below INFO.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Action is the engine's recommended disposition for a transaction.
type Action string

const (
	ActionAllow  Action = "ALLOW"
	ActionWarn   Action = "WARN"
	ActionReview Action = "REVIEW"
	ActionBlock  Action = "BLOCK"
)

// Alert types produced by the built-in rule table.
const (
	AlertTypeDuplicate             = "duplicate"
	AlertTypeThresholdExceeded     = "threshold_exceeded"
	AlertTypeThresholdWarning      = "threshold_warning"
	AlertTypeAnomaly               = "amount_anomaly"
	AlertTypeVelocitySpike         = "velocity_spike"
	AlertTypeRoundAmountPattern    = "round_amount_pattern"
	AlertTypeYearEndSpike          = "year_end_spike"
	AlertTypeMonthEndSpike         = "month_end_spike"
	AlertTypeMerchantConcentration = "merchant_concentration"
	AlertTypeWeekendPattern        = "weekend_pattern"
	AlertTypeLargeAmount           = "large_amount"
	AlertTypeCustomRule            = "custom_rule"
)

// Alert review statuses. The engine always creates alerts PENDING;
// transitions happen in the review workflow, not in the engine.
const (
	AlertStatusPending   = "PENDING"
	AlertStatusReviewed  = "REVIEWED"
	AlertStatusDismissed = "DISMISSED"
	AlertStatusResolved  = "RESOLVED"
)

// FraudEvidence is one observable fact that supports an alert.
// Every alert carries at least one evidence item.
type FraudEvidence struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FraudAlert is a single matched rule turned into an auditable record.
type FraudAlert struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Severity      Severity `json:"severity"`
	TransactionID string   `json:"transactionId"`
	OrgID         string   `json:"orgId"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`

	Evidence []FraudEvidence `json:"evidence"`

	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	RecommendedAction Action    `json:"recommendedAction"`
	AutoResolved      bool      `json:"autoResolved"`
}

// FraudCheckResult is the complete, explainable outcome of one check.
type FraudCheckResult struct {
	TransactionID   string `json:"transactionId"`
	OrgID           string `json:"orgId"`
	HasFraudSignals bool   `json:"hasFraudSignals"`

	DuplicateCheck  DuplicateCheck   `json:"duplicateCheck"`
	ThresholdStatus *ThresholdStatus `json:"thresholdStatus,omitempty"`
	AnomalyScore    AnomalyScore     `json:"anomalyScore"`
	VelocityCheck   VelocityCheck    `json:"velocityCheck"`
	PatternCheck    PatternCheck     `json:"patternCheck"`

	Alerts []FraudAlert `json:"alerts"`

	RecommendedAction Action    `json:"recommendedAction"`
	BlockedBySystem   bool      `json:"blockedBySystem"`
	CheckedAt         time.Time `json:"checkedAt"`
	ChecksPerformed   []string  `json:"checksPerformed"`
}
