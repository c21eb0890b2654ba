package domain

import (
	"fmt"
	"time"
)

// RiskConfig enumerates every variation point of one bot instance:
// entry-window bounds, exit thresholds, capacity, timing budgets and the
// scoring variant. The previously duplicated bot flavors differ only in
// these values.
type RiskConfig struct {
	// Entry window (market cap in quote currency). Creations below
	// WatchFloorMC are noise and ignored outright; candidates are watched
	// until they enter [MinEntryMC, MaxEntryMC]; a candidate that leaves
	// the window upward without a buy is rejected permanently.
	WatchFloorMC float64
	MinEntryMC   float64
	MaxEntryMC   float64

	// Activity gates checked before scoring.
	MinHolderCount int
	MinVolumeSol   float64 // bonding-curve SOL volume floor

	// Exit rules, evaluated in fixed order.
	MigrationTargetMC float64 // full staged exit once reached
	TakeProfitPct     float64 // unrealized ROI percent
	StopLossPct       float64 // positive number, loss percent

	// Position sizing and capacity.
	BuyAmountSol           float64
	MaxConcurrentPositions int

	// Staged exit shape.
	SellPortions int
	SellWindow   time.Duration

	// Simulated execution variance band for tranche proceeds.
	SlippageLow  float64
	SlippageHigh float64

	// Timing.
	WatchBudget time.Duration // Watching -> Expired after this
	MonitorTick time.Duration // periodic exit re-evaluation interval

	Scoring ScoringConfig
}

// DefaultRiskConfig returns the baseline bot variant.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		WatchFloorMC:           6_000,
		MinEntryMC:             10_000,
		MaxEntryMC:             40_000,
		MinHolderCount:         10,
		MinVolumeSol:           25,
		MigrationTargetMC:      69_000,
		TakeProfitPct:          100,
		StopLossPct:            30,
		BuyAmountSol:           1.0,
		MaxConcurrentPositions: 3,
		SellPortions:           4,
		SellWindow:             60 * time.Second,
		SlippageLow:            0.98,
		SlippageHigh:           1.02,
		WatchBudget:            30 * time.Minute,
		MonitorTick:            3 * time.Second,
		Scoring:                DefaultScoringConfig(),
	}
}

// Validate checks internal consistency of the configuration.
func (c *RiskConfig) Validate() error {
	if c.WatchFloorMC <= 0 || c.MinEntryMC <= 0 || c.MaxEntryMC <= 0 {
		return fmt.Errorf("market cap bounds must be positive")
	}
	if c.WatchFloorMC > c.MinEntryMC {
		return fmt.Errorf("watch floor %.0f above entry window lower bound %.0f", c.WatchFloorMC, c.MinEntryMC)
	}
	if c.MinEntryMC >= c.MaxEntryMC {
		return fmt.Errorf("entry window empty: min %.0f >= max %.0f", c.MinEntryMC, c.MaxEntryMC)
	}
	if c.MaxEntryMC > c.MigrationTargetMC {
		return fmt.Errorf("entry window upper bound %.0f above migration target %.0f", c.MaxEntryMC, c.MigrationTargetMC)
	}
	if c.BuyAmountSol <= 0 {
		return fmt.Errorf("buy amount must be positive")
	}
	if c.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("max concurrent positions must be positive")
	}
	if c.SellPortions <= 0 {
		return fmt.Errorf("sell portions must be positive")
	}
	if c.SlippageLow <= 0 || c.SlippageHigh < c.SlippageLow {
		return fmt.Errorf("invalid slippage band [%.2f, %.2f]", c.SlippageLow, c.SlippageHigh)
	}
	if c.StopLossPct <= 0 {
		return fmt.Errorf("stop loss percent must be positive")
	}
	if c.WatchBudget <= 0 || c.MonitorTick <= 0 {
		return fmt.Errorf("watch budget and monitor tick must be positive")
	}
	return nil
}

// BotConfig is the persisted per-user bot registration: an opaque wallet
// reference plus the risk configuration the instance runs with.
type BotConfig struct {
	UserID    string
	WalletRef string // opaque custody handle, validated but never decoded
	Risk      RiskConfig
	CreatedAt int64 // Unix ms
}
