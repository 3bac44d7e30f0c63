package core

import (
	"github.com/huangsam/reposcan/schema"
)

// Categorize maps a size estimate to a scan tier.
func Categorize(est schema.SizeEstimate) schema.ScanTier {
	switch n := est.FileCount; {
	case n < schema.NormalTierMaxFiles:
		return schema.NormalTier
	case n <= schema.LargeTierMaxFiles:
		return schema.LargeTier
	case n <= schema.UltraLargeTierMaxFiles:
		return schema.UltraLargeTier
	default:
		return schema.MassiveTier
	}
}

// Resolve turns a tier and a configuration into concrete scan parameters.
// Explicit Workers and SampleBudget in cfg override the tier profile.
func Resolve(cfg schema.ScanConfiguration, tier schema.ScanTier) schema.ScanPlan {
	profile, ok := schema.TierProfiles[tier]
	if !ok {
		tier = schema.MassiveTier
		profile = schema.TierProfiles[tier]
	}

	workers := min(profile.Workers, cfg.MaxWorkers)
	if cfg.Workers > 0 {
		workers = min(cfg.Workers, cfg.MaxWorkers)
	}
	workers = max(workers, 1)

	budget := levelBudget(cfg.Level, profile.SampleBudget)
	if cfg.SampleBudget != 0 {
		budget = cfg.SampleBudget
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = schema.DefaultBatchSize
	}
	if profile.MemoryConservative {
		batch = max(batch/2, min(schema.MinBatchSize, batch))
	}

	return schema.ScanPlan{
		Tier:               tier,
		Level:              cfg.Level,
		Workers:            workers,
		MaxWorkers:         workers,
		SampleBudget:       budget,
		BatchSize:          batch,
		MaxBatchSize:       batch,
		MemoryConservative: profile.MemoryConservative,
		Strategy:           profile.Strategy,
	}
}

// levelBudget applies the scan level to a tier budget.
func levelBudget(level schema.ScanLevel, tierBudget int) int {
	switch level {
	case schema.FastLevel:
		if tierBudget == schema.UnboundedBudget {
			return schema.FastLevelBudgetCap
		}
		return min(tierBudget, schema.FastLevelBudgetCap)
	case schema.ThoroughLevel:
		if tierBudget == schema.UnboundedBudget {
			return schema.UnboundedBudget
		}
		return 2 * tierBudget
	default:
		return tierBudget
	}
}
