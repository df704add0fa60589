package domain

// FraudPreventionConfig tunes the detection engine. Every field directly
// affects compliance outcomes, so it is an explicit struct with documented
// defaults rather than an options bag.
type FraudPreventionConfig struct {
	// DuplicateScoreThreshold is the floor for IsDuplicate.
	DuplicateScoreThreshold float64 `json:"duplicateScoreThreshold"`

	// AutoBlockDuplicateScore is the duplicate score that forces CRITICAL
	// severity (and therefore BLOCK).
	AutoBlockDuplicateScore float64 `json:"autoBlockDuplicateScore"`

	// AnomalyStdDeviationThreshold is the z-score magnitude that flags an
	// amount as anomalous.
	AnomalyStdDeviationThreshold float64 `json:"anomalyStdDeviationThreshold"`

	// AnomalyMinSampleSize suppresses the anomaly flag when the claimant
	// has fewer category-matched history points than this.
	AnomalyMinSampleSize int `json:"anomalyMinSampleSize"`

	// VelocityIncreaseThreshold is the acceleration multiple that flags a
	// frequency spike.
	VelocityIncreaseThreshold float64 `json:"velocityIncreaseThreshold"`

	// Velocity rate windows, in days.
	VelocityCurrentWindowDays  int `json:"velocityCurrentWindowDays"`
	VelocityBaselineWindowDays int `json:"velocityBaselineWindowDays"`

	// LargeAmountCeiling is the absolute amount (minor units) above which
	// the large-transaction WARNING rule fires regardless of history.
	LargeAmountCeiling int64 `json:"largeAmountCeiling"`

	// RequireReviewAbove forces a REVIEW disposition for any amount above
	// this ceiling, independent of other signals.
	RequireReviewAbove int64 `json:"requireReviewAbove"`

	// RequireReviewForCategories always warrant REVIEW.
	RequireReviewForCategories []string `json:"requireReviewForCategories,omitempty"`

	// Pattern rule trigger floors.
	RoundAmountThreshold           float64 `json:"roundAmountThreshold"`
	WeekendRatioThreshold          float64 `json:"weekendRatioThreshold"`
	MerchantConcentrationThreshold float64 `json:"merchantConcentrationThreshold"`

	// Window sizes (days) defining "end of month" and "end of year" for
	// spending-spike detection.
	EndOfMonthDays int `json:"endOfMonthDays"`
	YearEndDays    int `json:"yearEndDays"`
}

// DefaultFraudConfig returns the conservative defaults the engine commits to.
func DefaultFraudConfig() FraudPreventionConfig {
	return FraudPreventionConfig{
		DuplicateScoreThreshold:        0.6,
		AutoBlockDuplicateScore:        0.95,
		AnomalyStdDeviationThreshold:   2.0,
		AnomalyMinSampleSize:           5,
		VelocityIncreaseThreshold:      1.5,
		VelocityCurrentWindowDays:      7,
		VelocityBaselineWindowDays:     90,
		LargeAmountCeiling:             100_000,
		RequireReviewAbove:             500_000,
		RoundAmountThreshold:           0.5,
		WeekendRatioThreshold:          0.4,
		MerchantConcentrationThreshold: 0.8,
		EndOfMonthDays:                 5,
		YearEndDays:                    14,
	}
}

// RequiresReviewCategory reports whether the category is on the
// always-review list.
func (c FraudPreventionConfig) RequiresReviewCategory(categoryCode string) bool {
	if categoryCode == "" {
		return false
	}
	for _, cat := range c.RequireReviewForCategories {
		if cat == categoryCode {
			return true
		}
	}
	return false
}
