// Package tracker turns raw token sightings into buy/reject decisions.
// One Tracker belongs to one bot instance and is mutated only from that
// instance's event loop, so it carries no locks.
package tracker

import (
	"context"
	"log"
	"os"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/observability"
	"solana-pump-swarm/internal/scoring"
)

// BuySignal is returned when a watching candidate passes every gate.
// The caller executes the buy and reports the outcome via MarkBought or
// MarkRejected before processing the next event.
type BuySignal struct {
	Token *domain.TokenTelemetry
	Score domain.ScoreResult
}

// candidateState pairs a watching candidate with the volume observed
// while watching it. Terminal candidates are replaced by a settlement
// tombstone; the full state lives only while the candidate is watched.
type candidateState struct {
	cand      domain.Candidate
	volumeSol float64
}

// settlement is the tombstone left behind when a candidate settles.
// It keeps re-sighting a settled mint a no-op without retaining the
// candidate's telemetry and score. Tombstones age out in Sweep.
type settlement struct {
	state     domain.CandidateState
	reason    string
	settledMs int64
}

// Tracker is the per-instance candidate state machine.
type Tracker struct {
	risk   domain.RiskConfig
	scorer *scoring.Scorer
	oracle scoring.Oracle

	// candidates holds Watching candidates only.
	candidates map[string]*candidateState
	settled    map[string]settlement

	logger  *log.Logger
	metrics *observability.Metrics
}

// Option configures optional tracker collaborators.
type Option func(*Tracker)

// WithOracle attaches the external classifier gate.
func WithOracle(o scoring.Oracle) Option {
	return func(t *Tracker) { t.oracle = o }
}

// WithLogger sets the tracker logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a tracker for one bot's risk parameters.
func New(risk domain.RiskConfig, opts ...Option) *Tracker {
	t := &Tracker{
		risk:       risk,
		scorer:     scoring.NewScorer(risk),
		candidates: make(map[string]*candidateState),
		settled:    make(map[string]settlement),
		logger:     log.New(os.Stdout, "[tracker] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnTokenCreated handles a creation sighting. Below the watch floor the
// token is ignored as noise; above the entry window it is permanently
// rejected; in between it enters the watchlist. Re-sighting a watching
// mint refreshes its telemetry snapshot; a settled mint is a no-op.
func (t *Tracker) OnTokenCreated(tok *domain.TokenTelemetry, nowMs int64) {
	if tok == nil || tok.Mint == "" {
		return
	}
	if cs, ok := t.candidates[tok.Mint]; ok {
		refreshed := *tok
		cs.cand.Token = &refreshed
		return
	}
	if _, done := t.settled[tok.Mint]; done {
		return
	}

	if tok.MarketCapSol < t.risk.WatchFloorMC {
		return
	}
	if tok.MarketCapSol > t.risk.MaxEntryMC {
		t.settled[tok.Mint] = settlement{
			state:     domain.CandidateRejected,
			reason:    domain.RejectAboveWindow,
			settledMs: nowMs,
		}
		t.countRejection(domain.RejectAboveWindow)
		t.logger.Printf("candidate %s rejected: %s", tok.Mint, domain.RejectAboveWindow)
		return
	}

	t.candidates[tok.Mint] = &candidateState{cand: domain.Candidate{
		Token:          tok,
		DiscoveredAtMs: nowMs,
		State:          domain.CandidateWatching,
	}}
	if t.metrics != nil {
		t.metrics.CandidatesTracked.Inc()
	}
	t.logger.Printf("watching %s (%s) mc=%.0f", tok.Mint, tok.Symbol, tok.MarketCapSol)
}

// OnTrade folds a trade event into a watching candidate and evaluates
// the buy gates. A non-nil BuySignal means every gate passed; the first
// qualifying evaluation wins.
func (t *Tracker) OnTrade(ctx context.Context, ev *domain.TradeEvent, nowMs int64) *BuySignal {
	if ev == nil || ev.Mint == "" {
		return nil
	}
	cs, ok := t.candidates[ev.Mint]
	if !ok {
		return nil
	}

	if t.watchedPast(cs, nowMs) {
		t.expire(ev.Mint, nowMs)
		return nil
	}

	// Supersede the telemetry snapshot; never mutate the old one.
	tok := *cs.cand.Token
	tok.MarketCapSol = ev.MarketCapSol
	if ev.TxnCount > 0 {
		tok.TxnCount = ev.TxnCount
	} else {
		tok.TxnCount++
	}
	if ev.HolderCount > 0 {
		tok.HolderCount = ev.HolderCount
	}
	cs.cand.Token = &tok
	cs.volumeSol += ev.SolAmount

	// Leaving the window upward without buying is a permanent reject.
	if ev.MarketCapSol > t.risk.MaxEntryMC {
		t.reject(ev.Mint, domain.RejectAboveWindow, nowMs)
		return nil
	}
	if ev.MarketCapSol < t.risk.MinEntryMC {
		return nil
	}

	// Activity gates; failing keeps the candidate on the watchlist.
	if tok.HolderCount < t.risk.MinHolderCount || cs.volumeSol < t.risk.MinVolumeSol {
		return nil
	}

	result := t.scorer.Score(&tok, nowMs)
	if t.metrics != nil {
		t.metrics.TokensScored.Inc()
		t.metrics.ScoreAchieved.Observe(float64(result.Total))
	}

	result, err := scoring.ApplyOracle(ctx, t.oracle, &tok, result)
	if err != nil {
		// Never buy on missing data.
		if t.metrics != nil {
			t.metrics.OracleErrors.Inc()
		}
		t.logger.Printf("oracle failed for %s, rejecting: %v", ev.Mint, err)
		t.reject(ev.Mint, domain.RejectScoringFailed, nowMs)
		return nil
	}

	cs.cand.Score = &result
	if !result.ShouldBuy {
		return nil
	}

	if t.metrics != nil {
		t.metrics.BuySignals.WithLabelValues(string(result.Confidence)).Inc()
	}
	return &BuySignal{Token: &tok, Score: result}
}

// MarkBought settles a watching candidate after a successful buy.
func (t *Tracker) MarkBought(mint string, nowMs int64) {
	if _, ok := t.candidates[mint]; !ok {
		return
	}
	t.settle(mint, domain.CandidateBought, "", nowMs)
}

// MarkRejected settles a watching candidate after a failed or refused buy.
func (t *Tracker) MarkRejected(mint, reason string, nowMs int64) {
	if _, ok := t.candidates[mint]; !ok {
		return
	}
	t.reject(mint, reason, nowMs)
}

// Sweep expires watching candidates past the watch budget and returns
// their mints so the caller can drop the trade subscriptions. It also
// ages out old settlement tombstones, bounding memory on a busy feed.
func (t *Tracker) Sweep(nowMs int64) []string {
	var expired []string
	for mint, cs := range t.candidates {
		if t.watchedPast(cs, nowMs) {
			t.expire(mint, nowMs)
			expired = append(expired, mint)
		}
	}
	for mint, s := range t.settled {
		if nowMs-s.settledMs >= t.settledTTLMs() {
			delete(t.settled, mint)
		}
	}
	return expired
}

// Candidate returns a snapshot of the tracked candidate for a mint. A
// settled mint reports its terminal state and rejection reason only.
func (t *Tracker) Candidate(mint string) (domain.Candidate, bool) {
	if cs, ok := t.candidates[mint]; ok {
		return cs.cand, true
	}
	if s, ok := t.settled[mint]; ok {
		return domain.Candidate{State: s.state, RejectionReason: s.reason}, true
	}
	return domain.Candidate{}, false
}

// WatchingCount returns the number of candidates currently watched.
func (t *Tracker) WatchingCount() int {
	return len(t.candidates)
}

// settledTTLMs is how long a tombstone outlives its candidate. Duplicate
// creation sightings and stale queued trades arrive well within a watch
// budget; two covers them with margin.
func (t *Tracker) settledTTLMs() int64 {
	return 2 * t.risk.WatchBudget.Milliseconds()
}

func (t *Tracker) watchedPast(cs *candidateState, nowMs int64) bool {
	return nowMs-cs.cand.DiscoveredAtMs >= t.risk.WatchBudget.Milliseconds()
}

// settle replaces a candidate with its tombstone.
func (t *Tracker) settle(mint string, state domain.CandidateState, reason string, nowMs int64) {
	delete(t.candidates, mint)
	t.settled[mint] = settlement{state: state, reason: reason, settledMs: nowMs}
}

func (t *Tracker) expire(mint string, nowMs int64) {
	t.settle(mint, domain.CandidateExpired, "", nowMs)
	if t.metrics != nil {
		t.metrics.CandidatesExpired.Inc()
	}
	t.logger.Printf("candidate %s expired past watch budget", mint)
}

func (t *Tracker) reject(mint, reason string, nowMs int64) {
	t.settle(mint, domain.CandidateRejected, reason, nowMs)
	t.countRejection(reason)
	t.logger.Printf("candidate %s rejected: %s", mint, reason)
}

func (t *Tracker) countRejection(reason string) {
	if t.metrics != nil {
		t.metrics.CandidatesRejected.WithLabelValues(reason).Inc()
	}
}
