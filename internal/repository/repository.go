// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with org isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, orgID string, tx *domain.Transaction) error {
	if orgID == "" {
		return fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, org_id, amount, currency, date, description,
			category_code, merchant_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, orgID, tx.Amount, tx.Currency,
		tx.Date, tx.Description,
		tx.CategoryCode, tx.MerchantName,
		time.Now().UTC(),
	)
	return err
}

// GetTransaction retrieves a transaction by ID with org isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, orgID string, txID string) (*domain.Transaction, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, amount, currency, date, description,
		       category_code, merchant_name
		FROM transactions
		WHERE org_id = ? AND id = ?
	`

	var tx domain.Transaction
	err := r.db.QueryRowContext(ctx, r.rebind(query), orgID, txID).Scan(
		&tx.ID, &tx.OrgID, &tx.Amount, &tx.Currency,
		&tx.Date, &tx.Description,
		&tx.CategoryCode, &tx.MerchantName,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tx, nil
}

// ListTransactions retrieves an org's transactions since a point in time,
// ordered oldest first so callers get a chronological history.
func (r *SQLRepository) ListTransactions(ctx context.Context, orgID string, since time.Time) ([]domain.Transaction, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, amount, currency, date, description,
		       category_code, merchant_name
		FROM transactions
		WHERE org_id = ? AND date >= ?
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.OrgID, &tx.Amount, &tx.Currency,
			&tx.Date, &tx.Description,
			&tx.CategoryCode, &tx.MerchantName,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// SaveAlerts stores fraud alerts with org isolation.
func (r *SQLRepository) SaveAlerts(ctx context.Context, orgID string, alerts []domain.FraudAlert) error {
	if orgID == "" {
		return fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO fraud_alerts (
			id, org_id, type, severity, transaction_id, title, description,
			evidence, status, created_at, recommended_action, auto_resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i := range alerts {
		a := &alerts[i]

		evidence, _ := json.Marshal(a.Evidence)
		autoResolved := 0
		if a.AutoResolved {
			autoResolved = 1
		}

		_, err := r.db.ExecContext(ctx, r.rebind(query),
			a.ID, orgID, a.Type, string(a.Severity), a.TransactionID,
			a.Title, a.Description, string(evidence),
			a.Status, a.CreatedAt, string(a.RecommendedAction), autoResolved,
		)
		if err != nil {
			return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
		}
	}

	return nil
}

// GetAlert retrieves an alert by ID with org isolation.
func (r *SQLRepository) GetAlert(ctx context.Context, orgID string, alertID string) (*domain.FraudAlert, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, type, severity, transaction_id, title, description,
		       evidence, status, created_at, recommended_action, auto_resolved
		FROM fraud_alerts
		WHERE org_id = ? AND id = ?
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), orgID, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return alert, err
}

// ListAlerts retrieves an org's alerts, optionally filtered by status,
// newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, orgID string, status string) ([]domain.FraudAlert, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, type, severity, transaction_id, title, description,
		       evidence, status, created_at, recommended_action, auto_resolved
		FROM fraud_alerts
		WHERE org_id = ?
	`
	args := []any{orgID}

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.FraudAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}

// UpdateAlertStatus transitions an alert's review status.
func (r *SQLRepository) UpdateAlertStatus(ctx context.Context, orgID string, alertID string, status string) error {
	if orgID == "" {
		return fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		UPDATE fraud_alerts
		SET status = ?
		WHERE org_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, orgID, alertID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveCheckResult stores a complete check result as the audit record.
func (r *SQLRepository) SaveCheckResult(ctx context.Context, orgID string, result *domain.FraudCheckResult) error {
	if orgID == "" {
		return fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode check result: %w", err)
	}

	hasSignals := 0
	if result.HasFraudSignals {
		hasSignals = 1
	}
	blocked := 0
	if result.BlockedBySystem {
		blocked = 1
	}

	query := `
		INSERT INTO check_results (
			transaction_id, org_id, has_fraud_signals, recommended_action,
			blocked_by_system, checked_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id, org_id) DO UPDATE SET
			has_fraud_signals = excluded.has_fraud_signals,
			recommended_action = excluded.recommended_action,
			blocked_by_system = excluded.blocked_by_system,
			checked_at = excluded.checked_at,
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		result.TransactionID, orgID, hasSignals, string(result.RecommendedAction),
		blocked, result.CheckedAt, string(payload),
	)
	return err
}

// GetCheckResult retrieves a check result by transaction ID.
func (r *SQLRepository) GetCheckResult(ctx context.Context, orgID string, txID string) (*domain.FraudCheckResult, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT payload FROM check_results
		WHERE org_id = ? AND transaction_id = ?
	`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), orgID, txID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var result domain.FraudCheckResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode check result: %w", err)
	}

	return &result, nil
}

// SaveThresholdConfig upserts a country spending policy.
func (r *SQLRepository) SaveThresholdConfig(ctx context.Context, cfg *domain.ThresholdConfig) error {
	if cfg.CountryCode == "" || cfg.CategoryCode == "" {
		return fmt.Errorf("%w: countryCode and categoryCode are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO threshold_configs (
			country_code, category_code, per_transaction_limit, daily_limit,
			monthly_limit, annual_limit, warning_threshold, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(country_code, category_code) DO UPDATE SET
			per_transaction_limit = excluded.per_transaction_limit,
			daily_limit = excluded.daily_limit,
			monthly_limit = excluded.monthly_limit,
			annual_limit = excluded.annual_limit,
			warning_threshold = excluded.warning_threshold,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cfg.CountryCode, cfg.CategoryCode,
		cfg.PerTransactionLimit, cfg.DailyLimit,
		cfg.MonthlyLimit, cfg.AnnualLimit,
		cfg.WarningThreshold, time.Now().UTC(),
	)
	return err
}

// ListThresholdConfigs retrieves threshold configs, optionally for one
// country (empty countryCode returns all).
func (r *SQLRepository) ListThresholdConfigs(ctx context.Context, countryCode string) ([]domain.ThresholdConfig, error) {
	query := `
		SELECT country_code, category_code, per_transaction_limit, daily_limit,
		       monthly_limit, annual_limit, warning_threshold
		FROM threshold_configs
	`
	var args []any
	if countryCode != "" {
		query += " WHERE country_code = ?"
		args = append(args, countryCode)
	}
	query += " ORDER BY country_code, category_code"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []domain.ThresholdConfig
	for rows.Next() {
		var cfg domain.ThresholdConfig
		if err := rows.Scan(
			&cfg.CountryCode, &cfg.CategoryCode,
			&cfg.PerTransactionLimit, &cfg.DailyLimit,
			&cfg.MonthlyLimit, &cfg.AnnualLimit,
			&cfg.WarningThreshold,
		); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// SaveRuleConfig upserts a custom rule configuration with org isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, orgID string, rule *domain.CustomRuleConfig) error {
	if orgID == "" {
		return fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO custom_rules (
			id, org_id, name, description, expression, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, org_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, orgID, rule.Name, rule.Description,
		rule.Expression, string(rule.Severity), enabled,
		now, now,
	)
	return err
}

// ListRuleConfigs retrieves all active custom rules for an org.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, orgID string) ([]*domain.CustomRuleConfig, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, name, description, expression, severity, enabled
		FROM custom_rules
		WHERE org_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.CustomRuleConfig
	for rows.Next() {
		var cfg domain.CustomRuleConfig
		var severity string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.OrgID, &cfg.Name, &cfg.Description,
			&cfg.Expression, &severity, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Severity = domain.Severity(severity)
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.FraudAlert, error) {
	var a domain.FraudAlert
	var severity, action, evidence string
	var autoResolved int

	if err := row.Scan(
		&a.ID, &a.OrgID, &a.Type, &severity, &a.TransactionID,
		&a.Title, &a.Description, &evidence,
		&a.Status, &a.CreatedAt, &action, &autoResolved,
	); err != nil {
		return nil, err
	}

	a.Severity = domain.Severity(severity)
	a.RecommendedAction = domain.Action(action)
	a.AutoResolved = autoResolved == 1
	json.Unmarshal([]byte(evidence), &a.Evidence)

	return &a, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
