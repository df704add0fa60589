package thresholds

import (
	"github.com/harrierhq/harrier/internal/domain"
)

// defaultWarningThreshold fires approaching-limit warnings at 80% of a cap.
const defaultWarningThreshold = 0.8

// builtinConfigs is the conservative fallback policy table, applied whenever
// a country has no explicit configuration. Limits are minor units.
func builtinConfigs() []domain.ThresholdConfig {
	def := func(category string, perTx, daily, monthly, annual int64) domain.ThresholdConfig {
		cfg := domain.ThresholdConfig{
			CountryCode:      DefaultCountry,
			CategoryCode:     category,
			WarningThreshold: defaultWarningThreshold,
		}
		if perTx > 0 {
			cfg.PerTransactionLimit = domain.Limit(perTx)
		}
		if daily > 0 {
			cfg.DailyLimit = domain.Limit(daily)
		}
		if monthly > 0 {
			cfg.MonthlyLimit = domain.Limit(monthly)
		}
		if annual > 0 {
			cfg.AnnualLimit = domain.Limit(annual)
		}
		return cfg
	}

	return []domain.ThresholdConfig{
		def("OFFICE_SUPPLIES", 80_000, 120_000, 400_000, 2_400_000),
		def("TRAVEL", 250_000, 300_000, 1_000_000, 6_000_000),
		def("MEALS", 15_000, 30_000, 200_000, 1_200_000),
		def("ENTERTAINMENT", 50_000, 80_000, 250_000, 1_500_000),
		def("EQUIPMENT", 500_000, 0, 1_500_000, 6_000_000),
		def("SOFTWARE", 200_000, 0, 600_000, 3_600_000),
		def("TRAINING", 150_000, 0, 400_000, 2_000_000),
		def("FUEL", 20_000, 40_000, 150_000, 1_000_000),
		def("ACCOMMODATION", 40_000, 80_000, 500_000, 3_000_000),
		def("MISCELLANEOUS", 50_000, 100_000, 300_000, 1_800_000),
	}
}
