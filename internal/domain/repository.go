// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All record operations require orgID for strict multi-tenancy isolation;
// transaction histories never cross org boundaries.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, orgID string, tx *Transaction) error
	GetTransaction(ctx context.Context, orgID string, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, orgID string, since time.Time) ([]Transaction, error)

	// Fraud alert operations
	SaveAlerts(ctx context.Context, orgID string, alerts []FraudAlert) error
	GetAlert(ctx context.Context, orgID string, alertID string) (*FraudAlert, error)
	ListAlerts(ctx context.Context, orgID string, status string) ([]FraudAlert, error)
	UpdateAlertStatus(ctx context.Context, orgID string, alertID string, status string) error

	// Check results (audit trail)
	SaveCheckResult(ctx context.Context, orgID string, result *FraudCheckResult) error
	GetCheckResult(ctx context.Context, orgID string, txID string) (*FraudCheckResult, error)

	// Country threshold policies (not org-scoped; policies are per jurisdiction)
	SaveThresholdConfig(ctx context.Context, cfg *ThresholdConfig) error
	ListThresholdConfigs(ctx context.Context, countryCode string) ([]ThresholdConfig, error)

	// Custom rule configurations
	SaveRuleConfig(ctx context.Context, orgID string, rule *CustomRuleConfig) error
	ListRuleConfigs(ctx context.Context, orgID string) ([]*CustomRuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
