package domain

// ThresholdConfig is a per-country, per-category spending policy.
// Limits are minor units; nil means the window is not capped.
type ThresholdConfig struct {
	CountryCode  string `json:"countryCode"`
	CategoryCode string `json:"categoryCode"`

	PerTransactionLimit *int64 `json:"perTransactionLimit,omitempty"`
	DailyLimit          *int64 `json:"dailyLimit,omitempty"`
	MonthlyLimit        *int64 `json:"monthlyLimit,omitempty"`
	AnnualLimit         *int64 `json:"annualLimit,omitempty"`

	// WarningThreshold is the fraction of a limit (0..1) at which an
	// approaching-limit warning fires.
	WarningThreshold float64 `json:"warningThreshold"`
}

// Limit returns a pointer to an int64, for building configs inline.
func Limit(v int64) *int64 {
	return &v
}
