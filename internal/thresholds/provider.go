// Package thresholds provides per-country spending policy lookup.
package thresholds

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harrierhq/harrier/internal/domain"
)

// Provider resolves the ThresholdConfig applicable to a transaction.
// Lookups fall back: (country, category) -> (default country, category) ->
// nil. A nil result means the category has no spending policy and threshold
// monitoring is skipped for the transaction.
type Provider struct {
	mu      sync.RWMutex
	configs map[string]map[string]domain.ThresholdConfig // country -> category -> config
}

// DefaultCountry keys the conservative built-in table used whenever a
// country has no explicit configuration.
const DefaultCountry = "DEFAULT"

// NewProvider creates a provider seeded with the built-in default table.
func NewProvider() *Provider {
	p := &Provider{
		configs: make(map[string]map[string]domain.ThresholdConfig),
	}
	for _, cfg := range builtinConfigs() {
		p.put(cfg)
	}
	return p
}

// Resolve returns the threshold config for a country and category, or nil
// when no policy applies.
func (p *Provider) Resolve(countryCode, categoryCode string) *domain.ThresholdConfig {
	if categoryCode == "" {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if byCat, ok := p.configs[countryCode]; ok {
		if cfg, ok := byCat[categoryCode]; ok {
			return &cfg
		}
	}

	if byCat, ok := p.configs[DefaultCountry]; ok {
		if cfg, ok := byCat[categoryCode]; ok {
			cfg.CountryCode = countryCode
			return &cfg
		}
	}

	return nil
}

// Set registers or replaces a country-specific config.
func (p *Provider) Set(cfg domain.ThresholdConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.put(cfg)
}

// Countries returns all country codes with explicit configuration,
// excluding the built-in default table.
func (p *Provider) Countries() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var codes []string
	for code := range p.configs {
		if code != DefaultCountry {
			codes = append(codes, code)
		}
	}
	return codes
}

// ListCountry returns all configs for a country.
func (p *Provider) ListCountry(countryCode string) []domain.ThresholdConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byCat := p.configs[countryCode]
	configs := make([]domain.ThresholdConfig, 0, len(byCat))
	for _, cfg := range byCat {
		configs = append(configs, cfg)
	}
	return configs
}

// LoadFromRepository overlays repository-provisioned configs onto the
// built-in table. Missing or failing storage leaves the defaults in place.
func (p *Provider) LoadFromRepository(ctx context.Context, repo domain.Repository) error {
	configs, err := repo.ListThresholdConfigs(ctx, "")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cfg := range configs {
		p.put(cfg)
	}

	slog.Info("threshold configs loaded", "count", len(configs))
	return nil
}

func (p *Provider) put(cfg domain.ThresholdConfig) {
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold > 1 {
		cfg.WarningThreshold = defaultWarningThreshold
	}
	byCat, ok := p.configs[cfg.CountryCode]
	if !ok {
		byCat = make(map[string]domain.ThresholdConfig)
		p.configs[cfg.CountryCode] = byCat
	}
	byCat[cfg.CategoryCode] = cfg
}
