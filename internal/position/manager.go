// Package position owns one user's open positions: bookkeeping,
// unrealized PnL and exit-rule evaluation. A Manager is mutated only
// from its bot instance's event loop, so it carries no locks.
package position

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/idhash"
	"solana-pump-swarm/internal/observability"
	"solana-pump-swarm/internal/storage"
)

// ErrCapacityExceeded is returned by Open at the concurrency cap. It is
// an informational rejection, not a failure.
var ErrCapacityExceeded = errors.New("max concurrent positions reached")

// ErrPositionActive is returned by Open while an active position for the
// mint already exists.
var ErrPositionActive = errors.New("active position already exists for mint")

// ExitSignal tells the caller to start a staged exit for a position.
type ExitSignal struct {
	Position *domain.Position
	Reason   string
}

// Manager tracks the active positions of one user.
type Manager struct {
	userID string
	risk   domain.RiskConfig
	store  storage.PositionStore

	// active holds Open and PartiallyClosed positions only; settled
	// positions live in the store.
	active map[string]*domain.Position

	logger  *log.Logger
	metrics *observability.Metrics
}

// Option configures optional manager collaborators.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mx *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager creates a position manager for one user.
func NewManager(userID string, risk domain.RiskConfig, store storage.PositionStore, opts ...Option) *Manager {
	m := &Manager{
		userID: userID,
		risk:   risk,
		store:  store,
		active: make(map[string]*domain.Position),
		logger: log.New(os.Stdout, "[position] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resume loads the user's persisted active positions, making positions
// left open by a previous run resumable.
func (m *Manager) Resume(ctx context.Context) error {
	positions, err := m.store.ListActive(ctx, m.userID)
	if err != nil {
		m.countStoreError("list_active")
		return fmt.Errorf("resume positions: %w", err)
	}
	for _, p := range positions {
		m.active[p.Mint] = p
		if m.metrics != nil {
			m.metrics.ActivePositions.Inc()
		}
	}
	if len(positions) > 0 {
		m.logger.Printf("user %s resumed %d open positions", m.userID, len(positions))
	}
	return nil
}

// ActiveCount returns the number of Open and PartiallyClosed positions.
func (m *Manager) ActiveCount() int {
	return len(m.active)
}

// Active returns the active positions ordered by entry time.
func (m *Manager) Active() []*domain.Position {
	out := make([]*domain.Position, 0, len(m.active))
	for _, p := range m.active {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTimeMs < out[j].EntryTimeMs })
	return out
}

// Get returns the active position for a mint, if any.
func (m *Manager) Get(mint string) (*domain.Position, bool) {
	p, ok := m.active[mint]
	return p, ok
}

// Open records a new position after a successful buy. It fails with
// ErrCapacityExceeded at the concurrency cap and never creates a second
// active position for the same mint.
func (m *Manager) Open(ctx context.Context, tok *domain.TokenTelemetry, amountSol float64, entryRef string, nowMs int64) (*domain.Position, error) {
	if _, exists := m.active[tok.Mint]; exists {
		return nil, ErrPositionActive
	}
	if len(m.active) >= m.risk.MaxConcurrentPositions {
		if m.metrics != nil {
			m.metrics.CapacityRejects.Inc()
		}
		return nil, ErrCapacityExceeded
	}

	p := &domain.Position{
		PositionID:     idhash.ComputePositionID(m.userID, tok.Mint, nowMs),
		UserID:         m.userID,
		Mint:           tok.Mint,
		Symbol:         tok.Symbol,
		EntryMC:        tok.MarketCapSol,
		EntryAmountSol: amountSol,
		EntryTimeMs:    nowMs,
		EntryRef:       entryRef,
		CurrentMC:      tok.MarketCapSol,
		Status:         domain.PositionOpen,
	}

	if err := m.persist(ctx, p); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	m.active[tok.Mint] = p
	if m.metrics != nil {
		m.metrics.PositionsOpened.Inc()
		m.metrics.ActivePositions.Inc()
	}
	m.logger.Printf("user %s opened %s (%s) entry_mc=%.0f amount=%.3f",
		m.userID, p.Mint, p.Symbol, p.EntryMC, p.EntryAmountSol)
	return p, nil
}

// UpdateMarketCap refreshes a position's mark and evaluates the exit
// rules. The first matching rule wins and is latched; later updates on
// a latched position return nil while the staged exit runs.
func (m *Manager) UpdateMarketCap(ctx context.Context, mint string, newMC float64) *ExitSignal {
	p, ok := m.active[mint]
	if !ok {
		return nil
	}

	p.CurrentMC = newMC
	p.UnrealizedSol = p.EntryAmountSol * (p.UnrealizedROIPct() / 100) * p.RemainingFraction()
	if err := m.persist(ctx, p); err != nil {
		m.logger.Printf("persist mark for %s failed: %v", mint, err)
	}

	return m.evaluate(ctx, p)
}

// Tick re-evaluates every active position against its last known mark.
// It keeps exits live when the feed goes quiet after a threshold cross.
func (m *Manager) Tick(ctx context.Context) []*ExitSignal {
	var signals []*ExitSignal
	for _, p := range m.Active() {
		if sig := m.evaluate(ctx, p); sig != nil {
			signals = append(signals, sig)
		}
	}
	return signals
}

// evaluate runs the exit rules in fixed order. A latched position is
// never re-signaled.
func (m *Manager) evaluate(ctx context.Context, p *domain.Position) *ExitSignal {
	if p.ExitReason != "" {
		return nil
	}

	var reason string
	switch {
	case p.CurrentMC >= m.risk.MigrationTargetMC:
		reason = domain.ExitReasonMigration
	case p.UnrealizedROIPct() >= m.risk.TakeProfitPct:
		reason = domain.ExitReasonTakeProfit
	case p.UnrealizedROIPct() <= -m.risk.StopLossPct:
		reason = domain.ExitReasonStopLoss
	default:
		return nil
	}

	p.ExitReason = reason
	if err := m.persist(ctx, p); err != nil {
		m.logger.Printf("persist exit latch for %s failed: %v", p.Mint, err)
	}
	m.logger.Printf("user %s exit %s on %s (mc=%.0f roi=%.1f%%)",
		m.userID, reason, p.Mint, p.CurrentMC, p.UnrealizedROIPct())
	return &ExitSignal{Position: p, Reason: reason}
}

// RequestExit latches an exit reason outside the rule table, e.g. a
// full liquidation on shutdown. Returns nil if already latched.
func (m *Manager) RequestExit(ctx context.Context, mint, reason string) *ExitSignal {
	p, ok := m.active[mint]
	if !ok || p.ExitReason != "" {
		return nil
	}
	p.ExitReason = reason
	if err := m.persist(ctx, p); err != nil {
		m.logger.Printf("persist exit latch for %s failed: %v", mint, err)
	}
	return &ExitSignal{Position: p, Reason: reason}
}

// ApplyTranche folds one executed sell tranche into the position. The
// sold fraction is monotone and capped at 1.0 within epsilon; reaching
// it settles the position as Closed.
func (m *Manager) ApplyTranche(ctx context.Context, mint string, fraction, proceedsSol float64, nowMs int64) error {
	p, ok := m.active[mint]
	if !ok {
		return fmt.Errorf("no active position for %s", mint)
	}

	if fraction > p.RemainingFraction()+domain.FractionEpsilon {
		fraction = p.RemainingFraction()
	}
	p.TranchesSold += fraction
	p.RealizedPnlSol += proceedsSol - p.EntryAmountSol*fraction
	p.Status = domain.PositionPartiallyClosed

	if p.RemainingFraction() <= domain.FractionEpsilon {
		p.TranchesSold = 1.0
		p.Status = domain.PositionClosed
		p.ClosedAtMs = nowMs
		p.UnrealizedSol = 0
		delete(m.active, mint)
		if m.metrics != nil {
			m.metrics.PositionsClosed.WithLabelValues(p.ExitReason).Inc()
			m.metrics.ActivePositions.Dec()
			if p.RealizedPnlSol > 0 {
				m.metrics.RealizedPnlSol.Add(p.RealizedPnlSol)
			}
		}
		m.logger.Printf("user %s closed %s realized=%.4f SOL (%s)",
			m.userID, mint, p.RealizedPnlSol, p.ExitReason)
	}

	if err := m.persist(ctx, p); err != nil {
		return fmt.Errorf("persist tranche: %w", err)
	}
	return nil
}

// persist writes the position through, counting store failures.
func (m *Manager) persist(ctx context.Context, p *domain.Position) error {
	err := m.store.Put(ctx, p)
	if err != nil {
		m.countStoreError("put")
	}
	return err
}

func (m *Manager) countStoreError(op string) {
	if m.metrics != nil {
		m.metrics.DBQueryErrors.WithLabelValues("positions", op).Inc()
	}
}

// MarkErrored settles a position as Errored, preserving the fraction
// actually sold.
func (m *Manager) MarkErrored(ctx context.Context, mint string) error {
	p, ok := m.active[mint]
	if !ok {
		return fmt.Errorf("no active position for %s", mint)
	}

	p.Status = domain.PositionErrored
	delete(m.active, mint)
	if m.metrics != nil {
		m.metrics.PositionsErrored.Inc()
		m.metrics.ActivePositions.Dec()
	}
	m.logger.Printf("user %s position %s errored with %.3f sold", m.userID, mint, p.TranchesSold)

	if err := m.persist(ctx, p); err != nil {
		return fmt.Errorf("persist errored position: %w", err)
	}
	return nil
}
