package domain

// Confidence buckets a score into a coarse conviction level.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Scoring factor names. Every factor contributing to a score appears in
// the breakdown under one of these keys, including zero contributions.
const (
	FactorTxnActivity    = "txn_activity"
	FactorInitialBuy     = "initial_buy"
	FactorMarketCapBand  = "market_cap_band"
	FactorFreshness      = "freshness"
	FactorSocials        = "socials"
	FactorBundlePenalty  = "bundle_penalty"
	FactorOracleOverride = "oracle_override"
)

// ScoreResult is the output of the heuristic scorer. It is derived only
// from the input telemetry; identical input yields an identical result.
type ScoreResult struct {
	Total      int // clamped to [0, 100]
	Breakdown  map[string]int
	ShouldBuy  bool
	Confidence Confidence
}

// ScoringConfig enumerates every named threshold of the scoring formula.
// Near-duplicate bot variants disagreed on several of these values, so
// each one stays independently configurable; DefaultScoringConfig is one
// variant, not the canonical truth.
type ScoringConfig struct {
	BuyThreshold int // minimum total for ShouldBuy (default 40)

	// Transaction-activity step function, 0-40 points.
	TxnTier1Count int // >= this -> 40 (default 50)
	TxnTier2Count int // >= this -> 30 (default 20)
	TxnTier3Count int // >= this -> 20 (default 10)
	TxnTier4Count int // >= this -> 10 (default 5)

	// Initial-buy sizing, 0-20 points. 1-2 SOL is the optimum; above
	// DevFarmerBuySol the creator is treated as farming and gets zero.
	OptimalBuyMinSol float64 // default 1.0
	DevFarmerBuySol  float64 // default 2.0

	// Market-cap band position, 0-20 points.
	BandLowerPoints int // in the lower half of the entry window (default 20)
	BandUpperPoints int // in the upper half (default 10)

	// Freshness bonus, flat 0-15 points.
	FreshnessWindowMs int64 // age below this earns the bonus (default 10m)
	FreshnessPoints   int   // default 15

	// Social presence, 0-10 points total.
	TwitterPoints  int // default 4
	TelegramPoints int // default 3
	WebsitePoints  int // default 3

	// Bundle-suspicion penalty: txn_count / holder_count below a cutoff
	// suggests farmed holders. Two severity tiers, 0 to -20.
	BundleSevereRatio   float64 // default 0.15
	BundleSeverePenalty int     // default -20
	BundleMildRatio     float64 // default 0.35
	BundleMildPenalty   int     // default -10

	// Confidence cutoffs on the clamped total.
	HighConfidenceScore   int // default 60
	MediumConfidenceScore int // default 40
}

// DefaultScoringConfig returns the baseline scoring variant.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BuyThreshold:          40,
		TxnTier1Count:         50,
		TxnTier2Count:         20,
		TxnTier3Count:         10,
		TxnTier4Count:         5,
		OptimalBuyMinSol:      1.0,
		DevFarmerBuySol:       2.0,
		BandLowerPoints:       20,
		BandUpperPoints:       10,
		FreshnessWindowMs:     10 * 60 * 1000,
		FreshnessPoints:       15,
		TwitterPoints:         4,
		TelegramPoints:        3,
		WebsitePoints:         3,
		BundleSevereRatio:     0.15,
		BundleSeverePenalty:   -20,
		BundleMildRatio:       0.35,
		BundleMildPenalty:     -10,
		HighConfidenceScore:   60,
		MediumConfidenceScore: 40,
	}
}

// AggressiveScoringConfig is the looser variant observed in one of the
// consolidated bot flavors: earlier freshness cutoff, softer bundle gate.
func AggressiveScoringConfig() ScoringConfig {
	cfg := DefaultScoringConfig()
	cfg.BuyThreshold = 35
	cfg.FreshnessWindowMs = 20 * 60 * 1000
	cfg.BundleSevereRatio = 0.10
	cfg.BundleMildRatio = 0.25
	return cfg
}
