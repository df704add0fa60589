package detect

import (
	"time"

	"github.com/harrierhq/harrier/internal/domain"
)

// RoundUnit is the minor-unit multiple treated as a "round" amount
// (one whole currency unit).
const RoundUnit = 100

// minSpikeCount is the smallest number of window transactions that can
// back a timing-spike claim.
const minSpikeCount = 3

// AnalyzePatterns computes aggregate behavioral signals over the whole set
// (history plus the transaction under check): round-amount overuse,
// single-merchant concentration, weekend-heavy timing, and month-end /
// year-end spending spikes.
func AnalyzePatterns(cfg domain.FraudPreventionConfig, tx domain.Transaction, history []domain.Transaction) domain.PatternCheck {
	set := make([]domain.Transaction, 0, len(history)+1)
	set = append(set, history...)
	set = append(set, tx)

	total := len(set)

	var round, weekend, monthEnd, yearEnd int
	merchants := make(map[string]int)
	withMerchant := 0

	endOfMonthDays := cfg.EndOfMonthDays
	if endOfMonthDays <= 0 {
		endOfMonthDays = 5
	}
	yearEndDays := cfg.YearEndDays
	if yearEndDays <= 0 {
		yearEndDays = 14
	}

	for i := range set {
		t := &set[i]

		if t.Amount%RoundUnit == 0 {
			round++
		}

		switch t.Date.Weekday() {
		case time.Saturday, time.Sunday:
			weekend++
		}

		if t.MerchantName != "" {
			merchants[t.MerchantName]++
			withMerchant++
		}

		if inMonthEndWindow(t.Date, endOfMonthDays) {
			monthEnd++
		}
		if inYearEndWindow(t.Date, yearEndDays) {
			yearEnd++
		}
	}

	check := domain.PatternCheck{
		RoundAmountRatio:        float64(round) / float64(total),
		WeekendTransactionRatio: float64(weekend) / float64(total),
	}

	if withMerchant > 0 {
		top := 0
		for _, n := range merchants {
			if n > top {
				top = n
			}
		}
		check.MerchantConcentration = float64(top) / float64(withMerchant)
	}

	// Density acceleration: share of transactions landing in a window
	// relative to the share of days the window covers. 1.0 means the
	// claimant spends at their typical pace.
	monthAccel := densityAcceleration(monthEnd, total, float64(endOfMonthDays)/30.0)
	yearAccel := densityAcceleration(yearEnd, total, float64(yearEndDays)/365.0)

	check.EndOfMonthSpike = monthAccel > 1.0 && monthEnd >= minSpikeCount
	check.YearEndSpike = yearAccel > 1.0 && yearEnd >= minSpikeCount

	check.AccelerationRate = monthAccel
	if yearAccel > monthAccel {
		check.AccelerationRate = yearAccel
	}

	return check
}

func densityAcceleration(inWindow, total int, windowShare float64) float64 {
	if total == 0 || windowShare <= 0 {
		return 0
	}
	return (float64(inWindow) / float64(total)) / windowShare
}

func inMonthEndWindow(d time.Time, windowDays int) bool {
	daysInMonth := time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, d.Location()).Day()
	return d.Day() > daysInMonth-windowDays
}

func inYearEndWindow(d time.Time, windowDays int) bool {
	yearEnd := time.Date(d.Year(), time.December, 31, 0, 0, 0, 0, d.Location())
	return yearEnd.YearDay()-d.YearDay() < windowDays
}
