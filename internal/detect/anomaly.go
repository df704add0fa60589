package detect

import (
	"fmt"
	"math"

	"github.com/harrierhq/harrier/internal/domain"
)

// ScoreAnomaly flags amounts that sit far from the claimant's historical
// mean for the same category. Fewer than cfg.AnomalyMinSampleSize matching
// history points suppresses the flag entirely: sparse data must not
// fabricate a signal.
func ScoreAnomaly(cfg domain.FraudPreventionConfig, tx domain.Transaction, history []domain.Transaction) domain.AnomalyScore {
	if tx.CategoryCode == "" {
		return domain.AnomalyScore{Reason: "no category code; anomaly check skipped"}
	}

	var amounts []float64
	for i := range history {
		if history[i].CategoryCode == tx.CategoryCode {
			amounts = append(amounts, float64(history[i].Amount))
		}
	}

	minSample := cfg.AnomalyMinSampleSize
	if minSample <= 0 {
		minSample = 5
	}
	if len(amounts) < minSample {
		return domain.AnomalyScore{
			Reason: fmt.Sprintf("insufficient history for category %s (%d of %d required samples)",
				tx.CategoryCode, len(amounts), minSample),
		}
	}

	mean, stddev := meanStdDev(amounts)
	if stddev == 0 {
		// All historical amounts identical; no defensible deviation scale.
		return domain.AnomalyScore{
			Reason: fmt.Sprintf("historical amounts for category %s have zero variance", tx.CategoryCode),
		}
	}

	z := math.Abs(float64(tx.Amount)-mean) / stddev
	threshold := cfg.AnomalyStdDeviationThreshold
	if threshold <= 0 {
		threshold = 2.0
	}

	score := math.Min(1.0, z/(2*threshold))

	return domain.AnomalyScore{
		IsAnomaly: z >= threshold,
		Score:     score,
		Reason: fmt.Sprintf("amount %d is %.1f standard deviations from the category mean of %.0f",
			tx.Amount, z, mean),
	}
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
