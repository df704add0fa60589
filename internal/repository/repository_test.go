package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	orgID := "org-001"
	date := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := &domain.Transaction{
			ID:           "tx-001",
			OrgID:        orgID,
			Amount:       4537,
			Currency:     "EUR",
			Date:         date,
			Description:  "Team lunch",
			CategoryCode: "MEALS",
			MerchantName: "City Cafe",
		}

		if err := repo.SaveTransaction(ctx, orgID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, orgID, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}

		if retrieved.ID != tx.ID {
			t.Errorf("expected ID %s, got %s", tx.ID, retrieved.ID)
		}
		if retrieved.Amount != tx.Amount {
			t.Errorf("expected Amount %d, got %d", tx.Amount, retrieved.Amount)
		}
		if retrieved.OrgID != orgID {
			t.Errorf("expected OrgID %s, got %s", orgID, retrieved.OrgID)
		}
		if retrieved.CategoryCode != tx.CategoryCode {
			t.Errorf("expected CategoryCode %s, got %s", tx.CategoryCode, retrieved.CategoryCode)
		}
	})

	t.Run("OrgIsolation", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, "org-002", "tx-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for a different org, got: %v", err)
		}
	})

	t.Run("RequiresOrgID", func(t *testing.T) {
		tx := &domain.Transaction{ID: "tx-test"}

		if err := repo.SaveTransaction(ctx, "", tx); err == nil {
			t.Error("expected error for empty orgID")
		}
		if _, err := repo.GetTransaction(ctx, "", "tx-001"); err == nil {
			t.Error("expected error for empty orgID")
		}
		if _, err := repo.ListTransactions(ctx, "", time.Time{}); err == nil {
			t.Error("expected error for empty orgID")
		}
	})

	t.Run("ListTransactionsSince", func(t *testing.T) {
		old := &domain.Transaction{
			ID:       "tx-old",
			Amount:   1201,
			Currency: "EUR",
			Date:     date.AddDate(-2, 0, 0),
		}
		if err := repo.SaveTransaction(ctx, orgID, old); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		transactions, err := repo.ListTransactions(ctx, orgID, date.AddDate(-1, 0, 0))
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(transactions) != 1 {
			t.Fatalf("expected 1 transaction in the window, got %d", len(transactions))
		}
		if transactions[0].ID != "tx-001" {
			t.Errorf("expected tx-001, got %s", transactions[0].ID)
		}

		all, err := repo.ListTransactions(ctx, orgID, time.Time{})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 transactions total, got %d", len(all))
		}
		// Chronological order, oldest first.
		if len(all) == 2 && !all[0].Date.Before(all[1].Date) {
			t.Errorf("expected oldest-first ordering: %v then %v", all[0].Date, all[1].Date)
		}
	})

	t.Run("SaveAndListAlerts", func(t *testing.T) {
		alerts := []domain.FraudAlert{
			{
				ID:            "alert-001",
				Type:          domain.AlertTypeDuplicate,
				Severity:      domain.SeverityCritical,
				TransactionID: "tx-001",
				OrgID:         orgID,
				Title:         "Exact duplicate transaction",
				Description:   "Transaction matches a prior transaction.",
				Evidence: []domain.FraudEvidence{
					{Label: "duplicate_score", Value: "1.00"},
				},
				Status:            domain.AlertStatusPending,
				CreatedAt:         date,
				RecommendedAction: domain.ActionBlock,
			},
			{
				ID:                "alert-002",
				Type:              domain.AlertTypeLargeAmount,
				Severity:          domain.SeverityWarning,
				TransactionID:     "tx-001",
				OrgID:             orgID,
				Title:             "Large transaction amount",
				Status:            domain.AlertStatusPending,
				CreatedAt:         date.Add(time.Minute),
				RecommendedAction: domain.ActionWarn,
			},
		}

		if err := repo.SaveAlerts(ctx, orgID, alerts); err != nil {
			t.Fatalf("SaveAlerts failed: %v", err)
		}

		listed, err := repo.ListAlerts(ctx, orgID, "")
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(listed))
		}
		// Newest first.
		if listed[0].ID != "alert-002" {
			t.Errorf("expected alert-002 first, got %s", listed[0].ID)
		}

		retrieved, err := repo.GetAlert(ctx, orgID, "alert-001")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if retrieved.Severity != domain.SeverityCritical {
			t.Errorf("expected CRITICAL severity, got %s", retrieved.Severity)
		}
		if len(retrieved.Evidence) != 1 || retrieved.Evidence[0].Label != "duplicate_score" {
			t.Errorf("evidence did not round-trip: %+v", retrieved.Evidence)
		}
	})

	t.Run("AlertStatusFilterAndUpdate", func(t *testing.T) {
		if err := repo.UpdateAlertStatus(ctx, orgID, "alert-001", domain.AlertStatusReviewed); err != nil {
			t.Fatalf("UpdateAlertStatus failed: %v", err)
		}

		pending, err := repo.ListAlerts(ctx, orgID, domain.AlertStatusPending)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != "alert-002" {
			t.Errorf("expected only alert-002 pending, got %+v", pending)
		}

		err = repo.UpdateAlertStatus(ctx, orgID, "alert-missing", domain.AlertStatusReviewed)
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for an unknown alert, got: %v", err)
		}

		err = repo.UpdateAlertStatus(ctx, "org-002", "alert-001", domain.AlertStatusDismissed)
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound across orgs, got: %v", err)
		}
	})

	t.Run("SaveAndGetCheckResult", func(t *testing.T) {
		result := &domain.FraudCheckResult{
			TransactionID:     "tx-001",
			OrgID:             orgID,
			HasFraudSignals:   true,
			RecommendedAction: domain.ActionBlock,
			BlockedBySystem:   true,
			CheckedAt:         date,
			ChecksPerformed:   []string{"duplicate", "threshold", "anomaly", "velocity", "pattern"},
			DuplicateCheck: domain.DuplicateCheck{
				IsDuplicate:    true,
				DuplicateScore: 1.0,
			},
		}

		if err := repo.SaveCheckResult(ctx, orgID, result); err != nil {
			t.Fatalf("SaveCheckResult failed: %v", err)
		}

		retrieved, err := repo.GetCheckResult(ctx, orgID, "tx-001")
		if err != nil {
			t.Fatalf("GetCheckResult failed: %v", err)
		}
		if retrieved.RecommendedAction != domain.ActionBlock {
			t.Errorf("expected BLOCK, got %s", retrieved.RecommendedAction)
		}
		if !retrieved.DuplicateCheck.IsDuplicate {
			t.Error("duplicate signal did not round-trip")
		}

		// Re-checking the same transaction replaces the audit record.
		result.RecommendedAction = domain.ActionAllow
		result.HasFraudSignals = false
		result.BlockedBySystem = false
		if err := repo.SaveCheckResult(ctx, orgID, result); err != nil {
			t.Fatalf("SaveCheckResult upsert failed: %v", err)
		}

		retrieved, err = repo.GetCheckResult(ctx, orgID, "tx-001")
		if err != nil {
			t.Fatalf("GetCheckResult failed: %v", err)
		}
		if retrieved.RecommendedAction != domain.ActionAllow {
			t.Errorf("expected the upserted ALLOW, got %s", retrieved.RecommendedAction)
		}

		if _, err := repo.GetCheckResult(ctx, "org-002", "tx-001"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound across orgs, got: %v", err)
		}
	})

	t.Run("ThresholdConfigs", func(t *testing.T) {
		cfg := &domain.ThresholdConfig{
			CountryCode:         "AT",
			CategoryCode:        "MEALS",
			PerTransactionLimit: domain.Limit(10_000),
			DailyLimit:          domain.Limit(20_000),
			WarningThreshold:    0.8,
		}

		if err := repo.SaveThresholdConfig(ctx, cfg); err != nil {
			t.Fatalf("SaveThresholdConfig failed: %v", err)
		}

		configs, err := repo.ListThresholdConfigs(ctx, "AT")
		if err != nil {
			t.Fatalf("ListThresholdConfigs failed: %v", err)
		}
		if len(configs) != 1 {
			t.Fatalf("expected 1 config, got %d", len(configs))
		}
		if configs[0].PerTransactionLimit == nil || *configs[0].PerTransactionLimit != 10_000 {
			t.Errorf("per-transaction limit did not round-trip: %+v", configs[0])
		}
		if configs[0].MonthlyLimit != nil {
			t.Errorf("unset limits must stay nil, got %v", *configs[0].MonthlyLimit)
		}

		// Upsert replaces the existing policy.
		cfg.PerTransactionLimit = domain.Limit(12_000)
		if err := repo.SaveThresholdConfig(ctx, cfg); err != nil {
			t.Fatalf("SaveThresholdConfig upsert failed: %v", err)
		}
		configs, err = repo.ListThresholdConfigs(ctx, "AT")
		if err != nil {
			t.Fatalf("ListThresholdConfigs failed: %v", err)
		}
		if len(configs) != 1 || *configs[0].PerTransactionLimit != 12_000 {
			t.Errorf("expected the upserted limit 12000, got %+v", configs)
		}

		missingCountry := &domain.ThresholdConfig{CategoryCode: "MEALS"}
		if err := repo.SaveThresholdConfig(ctx, missingCountry); err == nil {
			t.Error("expected error for a config without a country code")
		}
	})

	t.Run("RuleConfigs", func(t *testing.T) {
		rule := &domain.CustomRuleConfig{
			ID:         "rule-001",
			OrgID:      orgID,
			Name:       "Large travel expense",
			Expression: `amount > 50000 && category == "TRAVEL"`,
			Severity:   domain.SeverityHigh,
			Enabled:    true,
		}
		if err := repo.SaveRuleConfig(ctx, orgID, rule); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		disabled := &domain.CustomRuleConfig{
			ID:         "rule-002",
			OrgID:      orgID,
			Name:       "Disabled rule",
			Expression: "amount > 1000",
			Severity:   domain.SeverityWarning,
			Enabled:    false,
		}
		if err := repo.SaveRuleConfig(ctx, orgID, disabled); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		rules, err := repo.ListRuleConfigs(ctx, orgID)
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(rules) != 1 || rules[0].ID != "rule-001" {
			t.Errorf("expected only the enabled rule, got %+v", rules)
		}
		if rules[0].Severity != domain.SeverityHigh {
			t.Errorf("severity did not round-trip: %s", rules[0].Severity)
		}

		other, err := repo.ListRuleConfigs(ctx, "org-002")
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("rules must not leak across orgs, got %+v", other)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "mongodb"})
	if err == nil {
		t.Error("expected error for an unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	lite := &SQLRepository{driver: "sqlite"}
	query := "SELECT * FROM t WHERE a = ?"
	if got := lite.rebind(query); got != query {
		t.Errorf("sqlite queries must pass through unchanged, got %q", got)
	}
}
