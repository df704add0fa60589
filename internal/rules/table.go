package rules

import (
	"fmt"

	"github.com/harrierhq/harrier/internal/domain"
)

// Fixed acceleration floors for the timing-spike rules.
const (
	yearEndAccelFloor  = 2.0
	monthEndAccelFloor = 1.8
	velocityHighAccel  = 2.5
)

// BuiltinTable returns the fixed, ordered rule table. Thresholds come from
// the engine configuration; score tiers use lower-inclusive, upper-exclusive
// bounds so each signal maps to exactly one severity.
func BuiltinTable(cfg domain.FraudPreventionConfig) []Rule {
	dupWarn := cfg.DuplicateScoreThreshold
	dupBlock := cfg.AutoBlockDuplicateScore
	velWarn := cfg.VelocityIncreaseThreshold

	return []Rule{
		{
			Name:     "duplicate_exact",
			Type:     domain.AlertTypeDuplicate,
			Severity: domain.SeverityCritical,
			Title:    "Exact duplicate transaction",
			Condition: func(c *Context) bool {
				return c.Duplicate.DuplicateScore >= dupBlock
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Transaction matches a prior transaction with similarity %.2f (amount, date, and description).", c.Duplicate.DuplicateScore)
			},
			Evidence: duplicateEvidence,
		},
		{
			Name:     "duplicate_strong",
			Type:     domain.AlertTypeDuplicate,
			Severity: domain.SeverityHigh,
			Title:    "Probable duplicate transaction",
			Condition: func(c *Context) bool {
				return c.Duplicate.DuplicateScore >= 0.75 && c.Duplicate.DuplicateScore < dupBlock
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Transaction closely matches a prior transaction (similarity %.2f).", c.Duplicate.DuplicateScore)
			},
			Evidence: duplicateEvidence,
		},
		{
			Name:     "duplicate_possible",
			Type:     domain.AlertTypeDuplicate,
			Severity: domain.SeverityWarning,
			Title:    "Possible duplicate transaction",
			Condition: func(c *Context) bool {
				return c.Duplicate.DuplicateScore >= dupWarn && c.Duplicate.DuplicateScore < 0.75
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Transaction partially matches a prior transaction (similarity %.2f).", c.Duplicate.DuplicateScore)
			},
			Evidence: duplicateEvidence,
		},
		{
			Name:     "threshold_exceeded",
			Type:     domain.AlertTypeThresholdExceeded,
			Severity: domain.SeverityCritical,
			Title:    "Spending limit exceeded",
			Condition: func(c *Context) bool {
				return c.Threshold != nil && c.Threshold.HasExceeded
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Category %s exceeds its %s spending limit.", c.Threshold.CategoryCode, c.Threshold.LimitType)
			},
			Evidence: thresholdEvidence,
		},
		{
			Name:     "threshold_warning",
			Type:     domain.AlertTypeThresholdWarning,
			Severity: domain.SeverityWarning,
			Title:    "Approaching spending limit",
			Condition: func(c *Context) bool {
				return c.Threshold != nil && c.Threshold.HasWarning && !c.Threshold.HasExceeded
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Category %s spending is approaching its %s limit.", c.Threshold.CategoryCode, c.Threshold.LimitType)
			},
			Evidence: thresholdEvidence,
		},
		{
			Name:     "anomaly_severe",
			Type:     domain.AlertTypeAnomaly,
			Severity: domain.SeverityHigh,
			Title:    "Severely unusual amount",
			Condition: func(c *Context) bool {
				return c.Anomaly.IsAnomaly && c.Anomaly.Score > 0.8
			},
			Description: func(c *Context) string { return c.Anomaly.Reason },
			Evidence:    anomalyEvidence,
		},
		{
			Name:     "anomaly_mild",
			Type:     domain.AlertTypeAnomaly,
			Severity: domain.SeverityInfo,
			Title:    "Unusual amount",
			Condition: func(c *Context) bool {
				return c.Anomaly.IsAnomaly && c.Anomaly.Score <= 0.8
			},
			Description: func(c *Context) string { return c.Anomaly.Reason },
			Evidence:    anomalyEvidence,
		},
		{
			Name:     "velocity_surge",
			Type:     domain.AlertTypeVelocitySpike,
			Severity: domain.SeverityHigh,
			Title:    "Sharp transaction frequency increase",
			Condition: func(c *Context) bool {
				return c.Velocity.AccelerationRate > velocityHighAccel
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Transaction rate of %.2f/day is %.1fx the historical baseline of %.2f/day.",
					c.Velocity.CurrentRate, c.Velocity.AccelerationRate, c.Velocity.HistoricalRate)
			},
			Evidence: velocityEvidence,
		},
		{
			Name:     "velocity_elevated",
			Type:     domain.AlertTypeVelocitySpike,
			Severity: domain.SeverityWarning,
			Title:    "Elevated transaction frequency",
			Condition: func(c *Context) bool {
				return c.Velocity.AccelerationRate > velWarn && c.Velocity.AccelerationRate <= velocityHighAccel
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Transaction rate of %.2f/day is %.1fx the historical baseline of %.2f/day.",
					c.Velocity.CurrentRate, c.Velocity.AccelerationRate, c.Velocity.HistoricalRate)
			},
			Evidence: velocityEvidence,
		},
		{
			Name:     "round_amount_pattern",
			Type:     domain.AlertTypeRoundAmountPattern,
			Severity: domain.SeverityWarning,
			Title:    "Round amount overuse",
			Condition: func(c *Context) bool {
				return c.Pattern.RoundAmountRatio > c.Config.RoundAmountThreshold
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("%.0f%% of transactions are exact round amounts, a common fabrication marker.", c.Pattern.RoundAmountRatio*100)
			},
			Evidence: func(c *Context) []domain.FraudEvidence {
				return []domain.FraudEvidence{
					{Label: "round_amount_ratio", Value: fmt.Sprintf("%.2f", c.Pattern.RoundAmountRatio)},
				}
			},
		},
		{
			Name:     "year_end_spike",
			Type:     domain.AlertTypeYearEndSpike,
			Severity: domain.SeverityHigh,
			Title:    "Year-end spending spike",
			Condition: func(c *Context) bool {
				return c.Pattern.YearEndSpike && c.Pattern.AccelerationRate > yearEndAccelFloor
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Spending density in the final days of the year is %.1fx the claimant's typical pace.", c.Pattern.AccelerationRate)
			},
			Evidence: patternAccelEvidence,
		},
		{
			Name:     "month_end_spike",
			Type:     domain.AlertTypeMonthEndSpike,
			Severity: domain.SeverityWarning,
			Title:    "Month-end spending spike",
			Condition: func(c *Context) bool {
				return c.Pattern.EndOfMonthSpike && c.Pattern.AccelerationRate > monthEndAccelFloor
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Spending density at month end is %.1fx the claimant's typical pace.", c.Pattern.AccelerationRate)
			},
			Evidence: patternAccelEvidence,
		},
		{
			Name:     "merchant_concentration",
			Type:     domain.AlertTypeMerchantConcentration,
			Severity: domain.SeverityWarning,
			Title:    "Single-merchant concentration",
			Condition: func(c *Context) bool {
				return c.Pattern.MerchantConcentration > c.Config.MerchantConcentrationThreshold
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("%.0f%% of merchant-attributed transactions go to a single merchant.", c.Pattern.MerchantConcentration*100)
			},
			Evidence: func(c *Context) []domain.FraudEvidence {
				return []domain.FraudEvidence{
					{Label: "merchant_concentration", Value: fmt.Sprintf("%.2f", c.Pattern.MerchantConcentration)},
				}
			},
		},
		{
			Name:     "weekend_pattern",
			Type:     domain.AlertTypeWeekendPattern,
			Severity: domain.SeverityInfo,
			Title:    "Weekend-heavy transaction timing",
			Condition: func(c *Context) bool {
				return c.Pattern.WeekendTransactionRatio > c.Config.WeekendRatioThreshold
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("%.0f%% of transactions fall on weekends.", c.Pattern.WeekendTransactionRatio*100)
			},
			Evidence: func(c *Context) []domain.FraudEvidence {
				return []domain.FraudEvidence{
					{Label: "weekend_ratio", Value: fmt.Sprintf("%.2f", c.Pattern.WeekendTransactionRatio)},
				}
			},
		},
		{
			Name:     "large_amount",
			Type:     domain.AlertTypeLargeAmount,
			Severity: domain.SeverityWarning,
			Title:    "Large transaction amount",
			Condition: func(c *Context) bool {
				return c.Transaction.Amount > c.Config.LargeAmountCeiling
			},
			Description: func(c *Context) string {
				return fmt.Sprintf("Amount %d exceeds the %d minor-unit review ceiling.", c.Transaction.Amount, c.Config.LargeAmountCeiling)
			},
			Evidence: func(c *Context) []domain.FraudEvidence {
				return []domain.FraudEvidence{
					{Label: "amount", Value: fmt.Sprintf("%d", c.Transaction.Amount)},
					{Label: "ceiling", Value: fmt.Sprintf("%d", c.Config.LargeAmountCeiling)},
				}
			},
		},
	}
}

func duplicateEvidence(c *Context) []domain.FraudEvidence {
	ev := []domain.FraudEvidence{
		{Label: "duplicate_score", Value: fmt.Sprintf("%.2f", c.Duplicate.DuplicateScore)},
		{Label: "same_amount", Value: fmt.Sprintf("%t", c.Duplicate.SameAmount)},
		{Label: "same_date", Value: fmt.Sprintf("%t", c.Duplicate.SameDate)},
		{Label: "same_description", Value: fmt.Sprintf("%t", c.Duplicate.SameDescription)},
	}
	if c.Duplicate.MatchedTransactionID != "" {
		ev = append(ev, domain.FraudEvidence{Label: "matched_transaction_id", Value: c.Duplicate.MatchedTransactionID})
	}
	return ev
}

func thresholdEvidence(c *Context) []domain.FraudEvidence {
	t := c.Threshold
	return []domain.FraudEvidence{
		{Label: "category", Value: t.CategoryCode},
		{Label: "limit_type", Value: t.LimitType},
		{Label: "daily_percentage", Value: fmt.Sprintf("%.2f", t.DailyPercentage)},
		{Label: "monthly_percentage", Value: fmt.Sprintf("%.2f", t.MonthlyPercentage)},
		{Label: "annual_percentage", Value: fmt.Sprintf("%.2f", t.AnnualPercentage)},
	}
}

func anomalyEvidence(c *Context) []domain.FraudEvidence {
	return []domain.FraudEvidence{
		{Label: "anomaly_score", Value: fmt.Sprintf("%.2f", c.Anomaly.Score)},
		{Label: "reason", Value: c.Anomaly.Reason},
	}
}

func velocityEvidence(c *Context) []domain.FraudEvidence {
	return []domain.FraudEvidence{
		{Label: "current_rate", Value: fmt.Sprintf("%.2f", c.Velocity.CurrentRate)},
		{Label: "historical_rate", Value: fmt.Sprintf("%.2f", c.Velocity.HistoricalRate)},
		{Label: "acceleration_rate", Value: fmt.Sprintf("%.2f", c.Velocity.AccelerationRate)},
	}
}

func patternAccelEvidence(c *Context) []domain.FraudEvidence {
	return []domain.FraudEvidence{
		{Label: "acceleration_rate", Value: fmt.Sprintf("%.2f", c.Pattern.AccelerationRate)},
	}
}
