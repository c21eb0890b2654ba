// Package scoring implements the heuristic token scorer and the optional
// external classifier gate.
package scoring

import (
	"solana-pump-swarm/internal/domain"
)

// Scorer computes a deterministic score from token telemetry. It holds
// only configuration, so one instance is safe for any number of
// concurrent callers.
type Scorer struct {
	cfg domain.ScoringConfig

	// Entry window bounds for the market-cap band factor.
	minEntryMC float64
	maxEntryMC float64
}

// NewScorer creates a scorer for one bot's risk parameters.
func NewScorer(risk domain.RiskConfig) *Scorer {
	return &Scorer{
		cfg:        risk.Scoring,
		minEntryMC: risk.MinEntryMC,
		maxEntryMC: risk.MaxEntryMC,
	}
}

// Score evaluates the factor table against a telemetry snapshot.
// Missing fields contribute zero and degrade the score; they never
// produce an error. nowMs anchors the freshness factor so repeated
// calls with the same inputs yield the same result.
func (s *Scorer) Score(tok *domain.TokenTelemetry, nowMs int64) domain.ScoreResult {
	breakdown := map[string]int{
		domain.FactorTxnActivity:   s.txnActivityPoints(tok.TxnCount),
		domain.FactorInitialBuy:    s.initialBuyPoints(tok.InitialBuySol),
		domain.FactorMarketCapBand: s.marketCapBandPoints(tok.MarketCapSol),
		domain.FactorFreshness:     s.freshnessPoints(tok.CreatedAtMs, nowMs),
		domain.FactorSocials:       s.socialsPoints(tok),
		domain.FactorBundlePenalty: s.bundlePenalty(tok.TxnCount, tok.HolderCount),
	}

	total := 0
	for _, pts := range breakdown {
		total += pts
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return domain.ScoreResult{
		Total:      total,
		Breakdown:  breakdown,
		ShouldBuy:  total >= s.cfg.BuyThreshold,
		Confidence: s.confidence(total),
	}
}

// txnActivityPoints is a step function of transaction count, 0-40.
func (s *Scorer) txnActivityPoints(txnCount int) int {
	switch {
	case txnCount >= s.cfg.TxnTier1Count:
		return 40
	case txnCount >= s.cfg.TxnTier2Count:
		return 30
	case txnCount >= s.cfg.TxnTier3Count:
		return 20
	case txnCount >= s.cfg.TxnTier4Count:
		return 10
	default:
		return 0
	}
}

// initialBuyPoints rewards a 1-2 SOL creator buy, 0-20. Above the dev
// farmer cutoff the creator bought too much of their own supply and the
// factor zeroes out.
func (s *Scorer) initialBuyPoints(buySol float64) int {
	if buySol <= 0 || buySol > s.cfg.DevFarmerBuySol {
		return 0
	}
	if buySol >= s.cfg.OptimalBuyMinSol {
		return 20
	}
	return int(buySol / s.cfg.OptimalBuyMinSol * 20)
}

// marketCapBandPoints scores position within the entry window, 0-20.
// The lower half of the window leaves more runway and scores higher.
func (s *Scorer) marketCapBandPoints(mc float64) int {
	if mc < s.minEntryMC || mc > s.maxEntryMC {
		return 0
	}
	mid := s.minEntryMC + (s.maxEntryMC-s.minEntryMC)/2
	if mc < mid {
		return s.cfg.BandLowerPoints
	}
	return s.cfg.BandUpperPoints
}

// freshnessPoints is a flat bonus for tokens younger than the window.
func (s *Scorer) freshnessPoints(createdAtMs, nowMs int64) int {
	if createdAtMs <= 0 || nowMs < createdAtMs {
		return 0
	}
	if nowMs-createdAtMs <= s.cfg.FreshnessWindowMs {
		return s.cfg.FreshnessPoints
	}
	return 0
}

// socialsPoints rewards linked social channels, 0-10.
func (s *Scorer) socialsPoints(tok *domain.TokenTelemetry) int {
	pts := 0
	if tok.Twitter != "" {
		pts += s.cfg.TwitterPoints
	}
	if tok.Telegram != "" {
		pts += s.cfg.TelegramPoints
	}
	if tok.Website != "" {
		pts += s.cfg.WebsitePoints
	}
	return pts
}

// bundlePenalty flags farmed holder counts: many holders with few
// transactions suggests a bundled launch. Two severity tiers, 0 to -20.
// With no holder data the ratio is undefined and the factor stays zero.
func (s *Scorer) bundlePenalty(txnCount, holderCount int) int {
	if holderCount <= 0 {
		return 0
	}
	ratio := float64(txnCount) / float64(holderCount)
	switch {
	case ratio < s.cfg.BundleSevereRatio:
		return s.cfg.BundleSeverePenalty
	case ratio < s.cfg.BundleMildRatio:
		return s.cfg.BundleMildPenalty
	default:
		return 0
	}
}

func (s *Scorer) confidence(total int) domain.Confidence {
	switch {
	case total >= s.cfg.HighConfidenceScore:
		return domain.ConfidenceHigh
	case total >= s.cfg.MediumConfidenceScore:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
