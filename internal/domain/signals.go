package domain

// Detector outputs. Each is derived per check and feeds the rule table.
// Zero values mean "no signal" for the respective detector.

// DuplicateCheck describes the single most similar prior transaction.
type DuplicateCheck struct {
	IsDuplicate     bool    `json:"isDuplicate"`
	DuplicateScore  float64 `json:"duplicateScore"` // 0..1
	SameAmount      bool    `json:"sameAmount"`
	SameDate        bool    `json:"sameDate"`
	SameDescription bool    `json:"sameDescription"`

	// MatchedTransactionID identifies the best match, empty when history
	// is empty.
	MatchedTransactionID string `json:"matchedTransactionId,omitempty"`
}

// Threshold window identifiers reported in ThresholdStatus.LimitType.
const (
	LimitPerTransaction = "per_transaction"
	LimitDaily          = "daily"
	LimitMonthly        = "monthly"
	LimitAnnual         = "annual"
)

// ThresholdStatus reports spending against the applicable category limits.
// Percentages are spent/limit for each window that has a configured limit;
// zero when the window has no limit.
type ThresholdStatus struct {
	CategoryCode      string  `json:"categoryCode"`
	HasExceeded       bool    `json:"hasExceeded"`
	HasWarning        bool    `json:"hasWarning"`
	DailyPercentage   float64 `json:"dailyPercentage"`
	MonthlyPercentage float64 `json:"monthlyPercentage"`
	AnnualPercentage  float64 `json:"annualPercentage"`

	// LimitType names the first window that exceeded (or, failing that,
	// warned), in per_transaction > daily > monthly > annual precedence.
	LimitType string `json:"limitType,omitempty"`
}

// AnomalyScore reports how unusual the amount is against the claimant's
// own category history.
type AnomalyScore struct {
	IsAnomaly bool    `json:"isAnomaly"`
	Score     float64 `json:"score"` // 0..1, scales with deviation
	Reason    string  `json:"reason"`
}

// VelocityCheck compares recent transaction frequency to a longer baseline.
// Rates are transactions per day.
type VelocityCheck struct {
	IsSpike          bool    `json:"isSpike"`
	CurrentRate      float64 `json:"currentRate"`
	HistoricalRate   float64 `json:"historicalRate"`
	AccelerationRate float64 `json:"accelerationRate"`
}

// PatternCheck holds aggregate behavioral signals computed over the whole
// transaction set (history plus current). Ratios are fractions in [0,1];
// AccelerationRate is unbounded above.
type PatternCheck struct {
	RoundAmountRatio        float64 `json:"roundAmountRatio"`
	MerchantConcentration   float64 `json:"merchantConcentration"`
	WeekendTransactionRatio float64 `json:"weekendTransactionRatio"`
	YearEndSpike            bool    `json:"yearEndSpike"`
	EndOfMonthSpike         bool    `json:"endOfMonthSpike"`
	AccelerationRate        float64 `json:"accelerationRate"`
}
