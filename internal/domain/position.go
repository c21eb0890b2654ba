package domain

// PositionStatus is the lifecycle state of an open position.
type PositionStatus string

const (
	PositionOpen            PositionStatus = "OPEN"
	PositionPartiallyClosed PositionStatus = "PARTIALLY_CLOSED"
	PositionClosed          PositionStatus = "CLOSED"
	PositionErrored         PositionStatus = "ERRORED"
)

// Active reports whether the position still holds any exposure.
func (s PositionStatus) Active() bool {
	return s == PositionOpen || s == PositionPartiallyClosed
}

// Exit reasons recorded when a staged exit is triggered.
const (
	ExitReasonMigration  = "MIGRATION_TARGET"
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonShutdown   = "SHUTDOWN"
)

// FractionEpsilon absorbs float accumulation error in tranche accounting.
const FractionEpsilon = 1e-9

// Position is one user's holding in one mint. Exclusively owned by the
// PositionManager of the user that opened it; at most one position with
// an Active status exists per (user, mint).
type Position struct {
	PositionID string // deterministic, see idhash
	UserID     string
	Mint       string
	Symbol     string

	EntryMC        float64 // market cap at entry
	EntryAmountSol float64
	EntryTimeMs    int64
	EntryRef       string // execution reference of the buy

	CurrentMC      float64
	TranchesSold   float64 // fraction sold, monotone in [0, 1+eps]
	Status         PositionStatus
	ExitReason     string // set once an exit rule fires
	RealizedPnlSol float64
	UnrealizedSol  float64
	ClosedAtMs     int64
}

// UnrealizedROIPct returns (current_mc/entry_mc - 1) * 100.
func (p *Position) UnrealizedROIPct() float64 {
	if p.EntryMC == 0 {
		return 0
	}
	return (p.CurrentMC/p.EntryMC - 1) * 100
}

// RemainingFraction returns the unsold fraction, floored at zero.
func (p *Position) RemainingFraction() float64 {
	rem := 1.0 - p.TranchesSold
	if rem < 0 {
		return 0
	}
	return rem
}

// FillSide discriminates archived execution fills.
type FillSide string

const (
	FillBuy  FillSide = "BUY"
	FillSell FillSide = "SELL"
)

// TradeFill is the persisted record of one executed submission: the buy,
// or one tranche of a staged sell.
type TradeFill struct {
	FillID     string // deterministic, see idhash
	PositionID string
	UserID     string
	Mint       string
	Side       FillSide
	Fraction   float64 // of the position, 1.0 for the buy
	AmountSol  float64 // spent (buy) or received (sell tranche)
	Ref        string  // execution reference from the submitter
	Reason     string  // exit reason for sells, "" for buys
	ExecutedAt int64   // Unix ms
}
