package detect

import (
	"strings"
	"testing"
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

func historyWithAmounts(category string, amounts ...int64) []domain.Transaction {
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	history := make([]domain.Transaction, 0, len(amounts))
	for i, amount := range amounts {
		history = append(history, domain.Transaction{
			Amount:       amount,
			Date:         date.AddDate(0, 0, -i),
			CategoryCode: category,
		})
	}
	return history
}

func TestScoreAnomaly(t *testing.T) {
	cfg := domain.DefaultFraudConfig()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("NoCategorySkips", func(t *testing.T) {
		tx := domain.Transaction{Amount: 999_999, Date: date}
		result := ScoreAnomaly(cfg, tx, historyWithAmounts("MEALS", 100, 100, 100, 100, 100))
		if result.IsAnomaly {
			t.Error("no category means no anomaly signal")
		}
		if !strings.Contains(result.Reason, "no category") {
			t.Errorf("unexpected reason: %s", result.Reason)
		}
	})

	t.Run("InsufficientHistory", func(t *testing.T) {
		tx := domain.Transaction{Amount: 999_999, Date: date, CategoryCode: "MEALS"}
		result := ScoreAnomaly(cfg, tx, historyWithAmounts("MEALS", 100, 110, 90, 105))
		if result.IsAnomaly {
			t.Error("four samples must not back an anomaly claim")
		}
		if !strings.Contains(result.Reason, "insufficient history") {
			t.Errorf("unexpected reason: %s", result.Reason)
		}
	})

	t.Run("OtherCategorySamplesIgnored", func(t *testing.T) {
		tx := domain.Transaction{Amount: 999_999, Date: date, CategoryCode: "MEALS"}
		result := ScoreAnomaly(cfg, tx, historyWithAmounts("TRAVEL", 100, 110, 90, 105, 95, 102))
		if result.IsAnomaly {
			t.Error("samples from another category must not count")
		}
		if !strings.Contains(result.Reason, "insufficient history") {
			t.Errorf("unexpected reason: %s", result.Reason)
		}
	})

	t.Run("ZeroVariance", func(t *testing.T) {
		tx := domain.Transaction{Amount: 999_999, Date: date, CategoryCode: "MEALS"}
		result := ScoreAnomaly(cfg, tx, historyWithAmounts("MEALS", 10_000, 10_000, 10_000, 10_000, 10_000))
		if result.IsAnomaly {
			t.Error("identical historical amounts give no deviation scale")
		}
		if !strings.Contains(result.Reason, "zero variance") {
			t.Errorf("unexpected reason: %s", result.Reason)
		}
	})

	t.Run("AnomalyDetected", func(t *testing.T) {
		// Mean 10000, population stddev ~707. 20000 sits ~14 deviations out.
		history := historyWithAmounts("MEALS", 10_000, 11_000, 9_000, 10_500, 9_500)
		tx := domain.Transaction{Amount: 20_000, Date: date, CategoryCode: "MEALS"}

		result := ScoreAnomaly(cfg, tx, history)
		if !result.IsAnomaly {
			t.Errorf("expected anomaly, got %+v", result)
		}
		if result.Score < 0.99 {
			t.Errorf("expected saturated score, got %.3f", result.Score)
		}
	})

	t.Run("NormalAmount", func(t *testing.T) {
		history := historyWithAmounts("MEALS", 10_000, 11_000, 9_000, 10_500, 9_500)
		tx := domain.Transaction{Amount: 10_200, Date: date, CategoryCode: "MEALS"}

		result := ScoreAnomaly(cfg, tx, history)
		if result.IsAnomaly {
			t.Errorf("amount near the mean must not flag: %+v", result)
		}
		if result.Score > 0.2 {
			t.Errorf("expected small score, got %.3f", result.Score)
		}
	})
}
