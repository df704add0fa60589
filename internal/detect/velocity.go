package detect

import (
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

// CheckVelocity compares the claimant's recent transaction rate against a
// longer baseline rate. Rates are transactions per day; the current window
// includes the transaction under check, the baseline covers history only.
// A zero baseline rate resolves to "no spike" rather than an infinite
// acceleration.
func CheckVelocity(cfg domain.FraudPreventionConfig, txDate time.Time, history []domain.Transaction) domain.VelocityCheck {
	currentDays := cfg.VelocityCurrentWindowDays
	if currentDays <= 0 {
		currentDays = 7
	}
	baselineDays := cfg.VelocityBaselineWindowDays
	if baselineDays <= currentDays {
		baselineDays = 90
	}

	currentFrom := txDate.AddDate(0, 0, -currentDays)
	baselineFrom := txDate.AddDate(0, 0, -baselineDays)

	currentCount := 1 // the transaction under check
	baselineCount := 0
	for i := range history {
		d := history[i].Date
		if d.After(txDate) {
			continue
		}
		if d.After(currentFrom) {
			currentCount++
		}
		if d.After(baselineFrom) {
			baselineCount++
		}
	}

	check := domain.VelocityCheck{
		CurrentRate:    float64(currentCount) / float64(currentDays),
		HistoricalRate: float64(baselineCount) / float64(baselineDays),
	}

	if check.HistoricalRate == 0 {
		return check
	}

	check.AccelerationRate = check.CurrentRate / check.HistoricalRate

	threshold := cfg.VelocityIncreaseThreshold
	if threshold <= 0 {
		threshold = 1.5
	}
	check.IsSpike = check.AccelerationRate > threshold

	return check
}
