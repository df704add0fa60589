package fraud

import (
	"testing"
	"time"

	"github.com/harrierhq/harrier/internal/domain"
	"github.com/harrierhq/harrier/internal/rules"
	"github.com/harrierhq/harrier/internal/thresholds"
)

var checkTime = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestDetector(cfg domain.FraudPreventionConfig, custom *rules.CustomEngine) *Detector {
	d := New(cfg, thresholds.NewProvider(), custom)
	d.Now = func() time.Time { return checkTime }
	return d
}

func hasAlertType(result domain.FraudCheckResult, alertType string) bool {
	for _, alert := range result.Alerts {
		if alert.Type == alertType {
			return true
		}
	}
	return false
}

// 2024-03-15 is a Friday; 4537 is not a round amount.
func cleanTransaction() domain.Transaction {
	return domain.Transaction{
		ID:           "tx-001",
		OrgID:        "org-1",
		Amount:       4537,
		Currency:     "EUR",
		Date:         time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Description:  "Team offsite dinner",
		CategoryCode: "TRAVEL",
	}
}

func TestCheckTransaction(t *testing.T) {
	t.Run("CleanTransactionAllowed", func(t *testing.T) {
		detector := newTestDetector(domain.DefaultFraudConfig(), nil)

		result := detector.CheckTransaction(cleanTransaction(), nil, "DEFAULT")
		if result.RecommendedAction != domain.ActionAllow {
			t.Errorf("expected ALLOW, got %s (alerts: %+v)", result.RecommendedAction, result.Alerts)
		}
		if result.HasFraudSignals {
			t.Errorf("expected no signals, got %d alerts", len(result.Alerts))
		}
		if result.BlockedBySystem {
			t.Error("a clean transaction must not be blocked")
		}
		if len(result.ChecksPerformed) != 5 {
			t.Errorf("expected 5 checks performed, got %v", result.ChecksPerformed)
		}
		if !result.CheckedAt.Equal(checkTime) {
			t.Errorf("expected CheckedAt %v, got %v", checkTime, result.CheckedAt)
		}
	})

	t.Run("ExactDuplicateBlocks", func(t *testing.T) {
		detector := newTestDetector(domain.DefaultFraudConfig(), nil)

		tx := cleanTransaction()
		prior := tx
		prior.ID = "tx-prior"

		result := detector.CheckTransaction(tx, []domain.Transaction{prior}, "DEFAULT")
		if result.RecommendedAction != domain.ActionBlock {
			t.Errorf("expected BLOCK, got %s", result.RecommendedAction)
		}
		if !result.BlockedBySystem {
			t.Error("a blocked transaction must be marked system-blocked")
		}
		if !result.DuplicateCheck.IsDuplicate {
			t.Error("expected the duplicate signal to be set")
		}
		if !hasAlertType(result, domain.AlertTypeDuplicate) {
			t.Errorf("expected a duplicate alert, got %+v", result.Alerts)
		}
	})

	t.Run("PerTransactionLimitBlocks", func(t *testing.T) {
		detector := newTestDetector(domain.DefaultFraudConfig(), nil)

		tx := cleanTransaction()
		tx.Amount = 85_000
		tx.CategoryCode = "OFFICE_SUPPLIES"

		result := detector.CheckTransaction(tx, nil, "DEFAULT")
		if result.RecommendedAction != domain.ActionBlock {
			t.Errorf("expected BLOCK over the per-transaction limit, got %s", result.RecommendedAction)
		}
		if !hasAlertType(result, domain.AlertTypeThresholdExceeded) {
			t.Errorf("expected a threshold alert, got %+v", result.Alerts)
		}
		if result.ThresholdStatus == nil || !result.ThresholdStatus.HasExceeded {
			t.Errorf("expected an exceeded threshold status, got %+v", result.ThresholdStatus)
		}
	})

	t.Run("LargeAmountWarns", func(t *testing.T) {
		detector := newTestDetector(domain.DefaultFraudConfig(), nil)

		tx := cleanTransaction()
		tx.Amount = 100_001
		tx.CategoryCode = ""

		result := detector.CheckTransaction(tx, nil, "DEFAULT")
		if !hasAlertType(result, domain.AlertTypeLargeAmount) {
			t.Errorf("100001 must raise a large-amount alert, got %+v", result.Alerts)
		}
		if result.RecommendedAction != domain.ActionWarn {
			t.Errorf("expected WARN, got %s", result.RecommendedAction)
		}

		tx.Amount = 99_999
		result = detector.CheckTransaction(tx, nil, "DEFAULT")
		if hasAlertType(result, domain.AlertTypeLargeAmount) {
			t.Error("99999 must not raise a large-amount alert")
		}
	})

	t.Run("MonthlyWarningFractionWarns", func(t *testing.T) {
		// 90740 is exactly 80% of the monthly limit, the configured
		// warning fraction. The check must warn without blocking.
		provider := thresholds.NewProvider()
		provider.Set(domain.ThresholdConfig{
			CountryCode:      "XT",
			CategoryCode:     "CONSULTING",
			MonthlyLimit:     domain.Limit(113_425),
			WarningThreshold: 0.8,
		})
		detector := New(domain.DefaultFraudConfig(), provider, nil)
		detector.Now = func() time.Time { return checkTime }

		tx := cleanTransaction()
		tx.Amount = 90_740
		tx.CategoryCode = "CONSULTING"

		result := detector.CheckTransaction(tx, nil, "XT")
		if !hasAlertType(result, domain.AlertTypeThresholdWarning) {
			t.Fatalf("expected a threshold warning, got %+v", result.Alerts)
		}
		if hasAlertType(result, domain.AlertTypeThresholdExceeded) {
			t.Errorf("spend at the warning fraction must not read as exceeded: %+v", result.Alerts)
		}
		if result.RecommendedAction != domain.ActionWarn {
			t.Errorf("expected WARN, got %s", result.RecommendedAction)
		}
		if result.BlockedBySystem {
			t.Error("a warning-level signal must not block the transaction")
		}
	})

	t.Run("ReviewAboveCeiling", func(t *testing.T) {
		detector := newTestDetector(domain.DefaultFraudConfig(), nil)

		tx := cleanTransaction()
		tx.Amount = 500_001
		tx.CategoryCode = ""

		result := detector.CheckTransaction(tx, nil, "DEFAULT")
		if result.RecommendedAction != domain.ActionReview {
			t.Errorf("expected REVIEW above the ceiling, got %s", result.RecommendedAction)
		}
		if result.BlockedBySystem {
			t.Error("review must not block")
		}
	})

	t.Run("ReviewCategory", func(t *testing.T) {
		cfg := domain.DefaultFraudConfig()
		cfg.RequireReviewForCategories = []string{"LEGAL_SERVICES"}
		detector := newTestDetector(cfg, nil)

		tx := cleanTransaction()
		tx.CategoryCode = "LEGAL_SERVICES"

		result := detector.CheckTransaction(tx, nil, "DEFAULT")
		if result.RecommendedAction != domain.ActionReview {
			t.Errorf("expected REVIEW for a review-listed category, got %s", result.RecommendedAction)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		detector := newTestDetector(domain.DefaultFraudConfig(), nil)

		tx := cleanTransaction()
		tx.Amount = 250_000
		history := []domain.Transaction{
			{ID: "tx-h1", Amount: 4537, Date: tx.Date.AddDate(0, 0, -3), CategoryCode: "TRAVEL"},
		}

		first := detector.CheckTransaction(tx, history, "DEFAULT")
		second := detector.CheckTransaction(tx, history, "DEFAULT")

		if first.RecommendedAction != second.RecommendedAction {
			t.Errorf("actions differ: %s vs %s", first.RecommendedAction, second.RecommendedAction)
		}
		if len(first.Alerts) != len(second.Alerts) {
			t.Fatalf("alert counts differ: %d vs %d", len(first.Alerts), len(second.Alerts))
		}
		for i := range first.Alerts {
			if first.Alerts[i].Type != second.Alerts[i].Type ||
				first.Alerts[i].Severity != second.Alerts[i].Severity ||
				first.Alerts[i].Description != second.Alerts[i].Description {
				t.Errorf("alert %d differs: %+v vs %+v", i, first.Alerts[i], second.Alerts[i])
			}
		}
		if first.DuplicateCheck != second.DuplicateCheck {
			t.Error("duplicate signals differ between identical runs")
		}
	})

	t.Run("CustomRuleOrderStable", func(t *testing.T) {
		engine, err := rules.NewCustomEngine()
		if err != nil {
			t.Fatalf("failed to create custom engine: %v", err)
		}
		configs := []*domain.CustomRuleConfig{
			{ID: "rule-03", OrgID: domain.GlobalOrgID, Name: "Cap gamma", Expression: "amount > 1000", Severity: domain.SeverityWarning, Enabled: true},
			{ID: "rule-01", OrgID: domain.GlobalOrgID, Name: "Cap alpha", Expression: "amount > 2000", Severity: domain.SeverityWarning, Enabled: true},
			{ID: "rule-04", OrgID: domain.GlobalOrgID, Name: "Cap delta", Expression: "amount > 3000", Severity: domain.SeverityWarning, Enabled: true},
			{ID: "rule-02", OrgID: domain.GlobalOrgID, Name: "Cap beta", Expression: "amount > 4000", Severity: domain.SeverityWarning, Enabled: true},
		}
		if err := engine.LoadRules(configs); err != nil {
			t.Fatalf("failed to load rules: %v", err)
		}

		detector := newTestDetector(domain.DefaultFraudConfig(), engine)
		tx := cleanTransaction()

		first := detector.CheckTransaction(tx, nil, "DEFAULT")
		if len(first.Alerts) != 4 {
			t.Fatalf("expected all 4 custom rules to fire, got %+v", first.Alerts)
		}
		want := []string{"Cap alpha", "Cap beta", "Cap gamma", "Cap delta"}
		for i, alert := range first.Alerts {
			if alert.Title != want[i] {
				t.Fatalf("expected alert %d to be %q, got %q", i, want[i], alert.Title)
			}
		}

		for run := 0; run < 20; run++ {
			again := detector.CheckTransaction(tx, nil, "DEFAULT")
			if len(again.Alerts) != len(first.Alerts) {
				t.Fatalf("run %d: alert counts differ: %d vs %d", run, len(first.Alerts), len(again.Alerts))
			}
			for i := range again.Alerts {
				if again.Alerts[i].Title != first.Alerts[i].Title {
					t.Fatalf("run %d: alert order changed at %d: %q vs %q",
						run, i, first.Alerts[i].Title, again.Alerts[i].Title)
				}
			}
		}
	})

	t.Run("CustomRuleAlert", func(t *testing.T) {
		engine, err := rules.NewCustomEngine()
		if err != nil {
			t.Fatalf("failed to create custom engine: %v", err)
		}
		err = engine.LoadRule(&domain.CustomRuleConfig{
			ID:         "rule-cap",
			OrgID:      domain.GlobalOrgID,
			Name:       "Expense cap",
			Expression: "amount > 200000",
			Severity:   domain.SeverityHigh,
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("failed to load rule: %v", err)
		}

		detector := newTestDetector(domain.DefaultFraudConfig(), engine)

		tx := cleanTransaction()
		tx.Amount = 250_001
		tx.CategoryCode = ""

		result := detector.CheckTransaction(tx, nil, "DEFAULT")
		if !hasAlertType(result, domain.AlertTypeCustomRule) {
			t.Errorf("expected a custom-rule alert, got %+v", result.Alerts)
		}
		if result.RecommendedAction != domain.ActionReview {
			t.Errorf("a HIGH custom alert must force REVIEW, got %s", result.RecommendedAction)
		}

		found := false
		for _, check := range result.ChecksPerformed {
			if check == CheckCustom {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in checks performed, got %v", CheckCustom, result.ChecksPerformed)
		}
	})
}

func TestCheckBatch(t *testing.T) {
	detector := newTestDetector(domain.DefaultFraudConfig(), nil)

	txs := make([]domain.Transaction, 3)
	for i := range txs {
		txs[i] = cleanTransaction()
		txs[i].ID = ""
	}
	txs[0].ID = "tx-a"
	txs[1].ID = "tx-b"
	txs[2].ID = "tx-c"

	results := detector.CheckBatch(txs, nil, "DEFAULT")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].DuplicateCheck.IsDuplicate {
		t.Error("the first of identical transactions must come through clean")
	}
	if results[0].RecommendedAction != domain.ActionAllow {
		t.Errorf("expected ALLOW for the first, got %s", results[0].RecommendedAction)
	}

	for i := 1; i < 3; i++ {
		if !results[i].DuplicateCheck.IsDuplicate {
			t.Errorf("result %d: expected duplicate against the rolling history", i)
		}
		if results[i].RecommendedAction != domain.ActionBlock {
			t.Errorf("result %d: expected BLOCK, got %s", i, results[i].RecommendedAction)
		}
		if results[i].DuplicateCheck.MatchedTransactionID != "tx-a" {
			t.Errorf("result %d: expected match against tx-a, got %s",
				i, results[i].DuplicateCheck.MatchedTransactionID)
		}
	}
}
