package detect

import (
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

// MonitorThresholds compares the transaction amount plus rolling category
// sums against the resolved spending policy. A nil config (category without
// a policy, or transaction without a category) yields nil: not applicable,
// not an error.
func MonitorThresholds(tx domain.Transaction, history []domain.Transaction, cfg *domain.ThresholdConfig) *domain.ThresholdStatus {
	if cfg == nil || tx.CategoryCode == "" {
		return nil
	}

	status := &domain.ThresholdStatus{
		CategoryCode: tx.CategoryCode,
	}

	daySpent := tx.Amount
	monthSpent := tx.Amount
	yearSpent := tx.Amount

	for i := range history {
		prior := &history[i]
		if prior.CategoryCode != tx.CategoryCode {
			continue
		}
		if sameCalendarDate(prior.Date, tx.Date) {
			daySpent += prior.Amount
		}
		if sameMonth(prior.Date, tx.Date) {
			monthSpent += prior.Amount
		}
		if prior.Date.Year() == tx.Date.Year() {
			yearSpent += prior.Amount
		}
	}

	// Windows evaluated in precedence order; the first exceeded window
	// names LimitType, falling back to the first warned window.
	type window struct {
		limitType string
		limit     *int64
		spent     int64
		pct       *float64
	}

	windows := []window{
		{domain.LimitPerTransaction, cfg.PerTransactionLimit, tx.Amount, nil},
		{domain.LimitDaily, cfg.DailyLimit, daySpent, &status.DailyPercentage},
		{domain.LimitMonthly, cfg.MonthlyLimit, monthSpent, &status.MonthlyPercentage},
		{domain.LimitAnnual, cfg.AnnualLimit, yearSpent, &status.AnnualPercentage},
	}

	warnType := ""
	for _, w := range windows {
		if w.limit == nil || *w.limit <= 0 {
			continue
		}
		pct := float64(w.spent) / float64(*w.limit)
		if w.pct != nil {
			*w.pct = pct
		}

		if pct >= 1.0 {
			status.HasExceeded = true
			if status.LimitType == "" {
				status.LimitType = w.limitType
			}
		} else if pct >= cfg.WarningThreshold && warnType == "" {
			warnType = w.limitType
		}
	}

	if status.HasExceeded {
		return status
	}
	if warnType != "" {
		status.HasWarning = true
		status.LimitType = warnType
	}
	return status
}

func sameCalendarDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
