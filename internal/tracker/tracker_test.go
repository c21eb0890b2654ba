package tracker

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/scoring"
)

const nowMs = int64(1_700_000_000_000)

func quiet() Option {
	return WithLogger(log.New(io.Discard, "", 0))
}

func createdToken(mint string, mc float64) *domain.TokenTelemetry {
	return &domain.TokenTelemetry{
		Mint:          mint,
		Symbol:        "PUMP",
		CreatedAtMs:   nowMs - 60_000,
		MarketCapSol:  mc,
		InitialBuySol: 1.5,
	}
}

// qualifyingTrade passes the activity gates and scores above threshold
// with the default config.
func qualifyingTrade(mint string, mc float64) *domain.TradeEvent {
	return &domain.TradeEvent{
		Mint:         mint,
		Side:         domain.TradeBuy,
		MarketCapSol: mc,
		SolAmount:    30,
		TxnCount:     60,
		HolderCount:  40,
	}
}

func TestTracker_BelowFloorIgnored(t *testing.T) {
	// Two independent instances observe the same sub-floor creation.
	a := New(domain.DefaultRiskConfig(), quiet())
	b := New(domain.DefaultRiskConfig(), quiet())

	tok := createdToken("mint-1", 5_000)
	a.OnTokenCreated(tok, nowMs)
	b.OnTokenCreated(tok, nowMs)

	if _, ok := a.Candidate("mint-1"); ok {
		t.Error("instance a created a candidate below the watch floor")
	}
	if _, ok := b.Candidate("mint-1"); ok {
		t.Error("instance b created a candidate below the watch floor")
	}
}

func TestTracker_AboveWindowRejectedPermanently(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())

	tr.OnTokenCreated(createdToken("mint-1", 50_000), nowMs)

	cand, ok := tr.Candidate("mint-1")
	if !ok {
		t.Fatal("expected rejected candidate to be remembered")
	}
	if cand.State != domain.CandidateRejected || cand.RejectionReason != domain.RejectAboveWindow {
		t.Errorf("unexpected state: %s / %s", cand.State, cand.RejectionReason)
	}

	// Re-sighting and trades on a terminal mint are no-ops.
	tr.OnTokenCreated(createdToken("mint-1", 12_000), nowMs)
	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 12_000), nowMs); sig != nil {
		t.Error("terminal candidate produced a buy signal")
	}
	cand, _ = tr.Candidate("mint-1")
	if cand.State != domain.CandidateRejected {
		t.Errorf("terminal state mutated: %s", cand.State)
	}
}

func TestTracker_WatchThenBuySignal(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())

	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	cand, ok := tr.Candidate("mint-1")
	if !ok || cand.State != domain.CandidateWatching {
		t.Fatalf("expected watching candidate, got %+v", cand)
	}

	sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 12_000), nowMs)
	if sig == nil {
		t.Fatal("expected buy signal")
	}
	if !sig.Score.ShouldBuy {
		t.Errorf("signal without buy recommendation: %+v", sig.Score)
	}
	if sig.Token.MarketCapSol != 12_000 {
		t.Errorf("signal carries stale market cap: %f", sig.Token.MarketCapSol)
	}

	// Candidate stays Watching until the caller reports the outcome.
	cand, _ = tr.Candidate("mint-1")
	if cand.State != domain.CandidateWatching {
		t.Fatalf("candidate settled before execution outcome: %s", cand.State)
	}

	tr.MarkBought("mint-1", nowMs)
	cand, _ = tr.Candidate("mint-1")
	if cand.State != domain.CandidateBought {
		t.Errorf("expected BOUGHT, got %s", cand.State)
	}

	// No second signal for a settled mint.
	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 13_000), nowMs); sig != nil {
		t.Error("bought candidate produced another buy signal")
	}
}

func TestTracker_ActivityGatesKeepWatching(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	// In window but too few holders.
	ev := qualifyingTrade("mint-1", 12_000)
	ev.HolderCount = 3
	ev.SolAmount = 1
	if sig := tr.OnTrade(context.Background(), ev, nowMs); sig != nil {
		t.Error("holder gate failed to hold")
	}

	// Enough holders but not enough observed volume.
	ev = qualifyingTrade("mint-1", 12_000)
	ev.SolAmount = 1
	if sig := tr.OnTrade(context.Background(), ev, nowMs); sig != nil {
		t.Error("volume gate failed to hold")
	}

	cand, _ := tr.Candidate("mint-1")
	if cand.State != domain.CandidateWatching {
		t.Errorf("gate failure must keep watching, got %s", cand.State)
	}

	// Volume accumulates across trades; the third sighting qualifies.
	ev = qualifyingTrade("mint-1", 12_000)
	ev.SolAmount = 24
	if sig := tr.OnTrade(context.Background(), ev, nowMs); sig == nil {
		t.Error("expected buy signal once cumulative volume clears the gate")
	}
}

func TestTracker_BelowWindowKeepsWatching(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 9_000), nowMs); sig != nil {
		t.Error("below-window trade produced a signal")
	}
	cand, _ := tr.Candidate("mint-1")
	if cand.State != domain.CandidateWatching {
		t.Errorf("expected WATCHING, got %s", cand.State)
	}
}

func TestTracker_ExitWindowUpwardRejects(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 45_000), nowMs); sig != nil {
		t.Error("above-window trade produced a signal")
	}
	cand, _ := tr.Candidate("mint-1")
	if cand.State != domain.CandidateRejected || cand.RejectionReason != domain.RejectAboveWindow {
		t.Errorf("expected permanent above-window rejection, got %s / %s", cand.State, cand.RejectionReason)
	}

	// No re-entry after leaving the window upward.
	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 12_000), nowMs); sig != nil {
		t.Error("rejected candidate re-entered the window")
	}
}

func TestTracker_WatchBudgetExpires(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)
	tr.OnTokenCreated(createdToken("mint-2", 8_000), nowMs)

	late := nowMs + domain.DefaultRiskConfig().WatchBudget.Milliseconds() + 1

	// A trade past the budget expires instead of signaling.
	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 12_000), late); sig != nil {
		t.Error("expired candidate produced a buy signal")
	}
	cand, _ := tr.Candidate("mint-1")
	if cand.State != domain.CandidateExpired {
		t.Errorf("expected EXPIRED, got %s", cand.State)
	}

	// Sweep expires idle candidates and reports their mints.
	expired := tr.Sweep(late)
	if len(expired) != 1 || expired[0] != "mint-2" {
		t.Errorf("unexpected sweep result: %v", expired)
	}
	if tr.WatchingCount() != 0 {
		t.Errorf("expected empty watchlist, got %d", tr.WatchingCount())
	}
}

func TestTracker_RepeatSightingRefreshesSnapshot(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	tok := createdToken("mint-1", 9_500)
	tok.InitialBuySol = 3.0
	tr.OnTokenCreated(tok, nowMs+1_000)

	cand, ok := tr.Candidate("mint-1")
	if !ok || cand.State != domain.CandidateWatching {
		t.Fatalf("expected watching candidate, got %+v", cand)
	}
	if cand.Token.MarketCapSol != 9_500 || cand.Token.InitialBuySol != 3.0 {
		t.Errorf("snapshot not refreshed: %+v", cand.Token)
	}
	if cand.DiscoveredAtMs != nowMs {
		t.Errorf("refresh must not restart the watch budget, got %d", cand.DiscoveredAtMs)
	}
}

func TestTracker_SettledCandidatesLeaveOnlyTombstones(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())

	for n := 0; n < 1_000; n++ {
		tr.OnTokenCreated(createdToken(fmt.Sprintf("mint-%d", n), 8_000), nowMs)
	}

	late := nowMs + domain.DefaultRiskConfig().WatchBudget.Milliseconds() + 1
	if expired := tr.Sweep(late); len(expired) != 1_000 {
		t.Fatalf("expected 1000 expirations, got %d", len(expired))
	}
	if len(tr.candidates) != 0 {
		t.Errorf("settled candidates still resident: %d", len(tr.candidates))
	}
	if len(tr.settled) != 1_000 {
		t.Fatalf("expected a tombstone per settled mint, got %d", len(tr.settled))
	}

	// Tombstones keep re-sighting a no-op.
	tr.OnTokenCreated(createdToken("mint-0", 8_000), late)
	if cand, _ := tr.Candidate("mint-0"); cand.State != domain.CandidateExpired {
		t.Errorf("settled mint re-entered the watchlist: %s", cand.State)
	}

	// And age out themselves.
	tr.Sweep(late + tr.settledTTLMs())
	if len(tr.settled) != 0 {
		t.Errorf("tombstones not aged out: %d", len(tr.settled))
	}
	if _, ok := tr.Candidate("mint-0"); ok {
		t.Error("aged-out mint still reported")
	}
}

type failingOracle struct{}

func (failingOracle) Predict(context.Context, *domain.TokenTelemetry) (string, float64, error) {
	return "", 0, scoring.ErrOracleUnavailable
}

func TestTracker_OracleFailureRejects(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet(), WithOracle(failingOracle{}))
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	if sig := tr.OnTrade(context.Background(), qualifyingTrade("mint-1", 12_000), nowMs); sig != nil {
		t.Error("oracle failure must never produce a buy signal")
	}
	cand, _ := tr.Candidate("mint-1")
	if cand.State != domain.CandidateRejected || cand.RejectionReason != domain.RejectScoringFailed {
		t.Errorf("expected scoring_unavailable rejection, got %s / %s", cand.State, cand.RejectionReason)
	}
}

func TestTracker_MarkRejected(t *testing.T) {
	tr := New(domain.DefaultRiskConfig(), quiet())
	tr.OnTokenCreated(createdToken("mint-1", 8_000), nowMs)

	tr.MarkRejected("mint-1", domain.RejectCapacity, nowMs)
	cand, _ := tr.Candidate("mint-1")
	if cand.State != domain.CandidateRejected || cand.RejectionReason != domain.RejectCapacity {
		t.Errorf("unexpected state: %s / %s", cand.State, cand.RejectionReason)
	}

	// Marking a terminal candidate again is a no-op.
	tr.MarkBought("mint-1", nowMs)
	cand, _ = tr.Candidate("mint-1")
	if cand.State != domain.CandidateRejected {
		t.Errorf("terminal state mutated: %s", cand.State)
	}
}
