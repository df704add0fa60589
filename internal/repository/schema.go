package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    amount BIGINT NOT NULL,
    currency TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    description TEXT,
    category_code TEXT,
    merchant_name TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_org ON transactions(org_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(org_id, date);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(org_id, category_code);
`

const schemaFraudAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    evidence TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING',
    created_at TIMESTAMP NOT NULL,
    recommended_action TEXT NOT NULL,
    auto_resolved INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_org ON fraud_alerts(org_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_tx ON fraud_alerts(org_id, transaction_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_status ON fraud_alerts(org_id, status);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_severity ON fraud_alerts(org_id, severity);
`

const schemaCheckResults = `
CREATE TABLE IF NOT EXISTS check_results (
    transaction_id TEXT NOT NULL,
    org_id TEXT NOT NULL,
    has_fraud_signals INTEGER NOT NULL,
    recommended_action TEXT NOT NULL,
    blocked_by_system INTEGER NOT NULL,
    checked_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (transaction_id, org_id)
);

CREATE INDEX IF NOT EXISTS idx_check_results_org ON check_results(org_id);
CREATE INDEX IF NOT EXISTS idx_check_results_action ON check_results(org_id, recommended_action);
`

const schemaThresholdConfigs = `
CREATE TABLE IF NOT EXISTS threshold_configs (
    country_code TEXT NOT NULL,
    category_code TEXT NOT NULL,
    per_transaction_limit BIGINT,
    daily_limit BIGINT,
    monthly_limit BIGINT,
    annual_limit BIGINT,
    warning_threshold REAL NOT NULL DEFAULT 0.8,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (country_code, category_code)
);
`

const schemaCustomRules = `
CREATE TABLE IF NOT EXISTS custom_rules (
    id TEXT NOT NULL,
    org_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, org_id)
);

CREATE INDEX IF NOT EXISTS idx_custom_rules_org ON custom_rules(org_id);
CREATE INDEX IF NOT EXISTS idx_custom_rules_enabled ON custom_rules(org_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaFraudAlerts,
		schemaCheckResults,
		schemaThresholdConfigs,
		schemaCustomRules,
	}
}
