package schema

// Tier boundaries in file counts. A repository with exactly LargeTierMaxFiles
// files is still large, one with exactly UltraLargeTierMaxFiles is ultra_large.
const (
	NormalTierMaxFiles     = 5_000 // exclusive
	LargeTierMaxFiles      = 25_000
	UltraLargeTierMaxFiles = 100_000
)

// UnboundedBudget marks a sample budget that admits the whole eligible listing.
const UnboundedBudget = -1

// FastLevelBudgetCap is the sample budget ceiling applied by the fast scan level.
const FastLevelBudgetCap = 500

// TierProfile holds the tier-driven defaults used when resolving a scan plan.
type TierProfile struct {
	Workers            int              `json:"workers"`
	SampleBudget       int              `json:"sample_budget"` // UnboundedBudget for a full scan
	MemoryConservative bool             `json:"memory_conservative"`
	Strategy           CheckoutStrategy `json:"strategy"`
}

// TierProfiles is the single source of truth for tier-driven scan parameters.
var TierProfiles = map[ScanTier]TierProfile{
	MassiveTier:    {Workers: 2, SampleBudget: 500, MemoryConservative: true, Strategy: SparseCheckout},
	UltraLargeTier: {Workers: 4, SampleBudget: 1_000, MemoryConservative: true, Strategy: SparseCheckout},
	LargeTier:      {Workers: 6, SampleBudget: 2_000, MemoryConservative: false, Strategy: ShallowCheckout},
	NormalTier:     {Workers: 8, SampleBudget: UnboundedBudget, MemoryConservative: false, Strategy: ShallowCheckout},
}

// AllScanTiers returns the tiers ordered from smallest to largest.
var AllScanTiers = []ScanTier{NormalTier, LargeTier, UltraLargeTier, MassiveTier}
