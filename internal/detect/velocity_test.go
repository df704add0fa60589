package detect

import (
	"math"
	"testing"
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

func TestCheckVelocity(t *testing.T) {
	cfg := domain.DefaultFraudConfig()
	txDate := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("NoHistory", func(t *testing.T) {
		result := CheckVelocity(cfg, txDate, nil)
		if result.IsSpike {
			t.Error("no baseline means no spike")
		}
		if result.HistoricalRate != 0 {
			t.Errorf("expected zero historical rate, got %.3f", result.HistoricalRate)
		}
		if result.AccelerationRate != 0 {
			t.Errorf("zero baseline must not produce an acceleration, got %.3f", result.AccelerationRate)
		}
	})

	t.Run("RecentBurst", func(t *testing.T) {
		// Six transactions in the last week, nothing before.
		var history []domain.Transaction
		for i := 1; i <= 6; i++ {
			history = append(history, domain.Transaction{
				ID:   "tx-recent",
				Date: txDate.AddDate(0, 0, -i),
			})
		}

		result := CheckVelocity(cfg, txDate, history)
		if !result.IsSpike {
			t.Errorf("expected a spike: %+v", result)
		}
		if math.Abs(result.CurrentRate-1.0) > 0.001 {
			t.Errorf("expected current rate 1.0/day, got %.3f", result.CurrentRate)
		}
		// 7 tx/week against a 6-in-90-days baseline is a 15x acceleration.
		if math.Abs(result.AccelerationRate-15.0) > 0.01 {
			t.Errorf("expected acceleration 15.0, got %.3f", result.AccelerationRate)
		}
	})

	t.Run("SteadyRate", func(t *testing.T) {
		// One transaction every three days across the whole baseline.
		var history []domain.Transaction
		for i := 3; i < 90; i += 3 {
			history = append(history, domain.Transaction{
				Date: txDate.AddDate(0, 0, -i),
			})
		}

		result := CheckVelocity(cfg, txDate, history)
		if result.IsSpike {
			t.Errorf("steady spending must not spike: %+v", result)
		}
		if result.AccelerationRate > cfg.VelocityIncreaseThreshold {
			t.Errorf("expected acceleration under %.1f, got %.3f",
				cfg.VelocityIncreaseThreshold, result.AccelerationRate)
		}
	})

	t.Run("FutureTransactionsIgnored", func(t *testing.T) {
		history := []domain.Transaction{
			{Date: txDate.AddDate(0, 0, 1)},
			{Date: txDate.AddDate(0, 0, 5)},
		}

		result := CheckVelocity(cfg, txDate, history)
		if result.HistoricalRate != 0 {
			t.Errorf("transactions after the check date must not count, got rate %.3f", result.HistoricalRate)
		}
	})
}
