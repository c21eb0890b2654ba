// Package bot runs the per-user trading instances and the orchestrator
// that owns them. Each instance is a single event loop consuming the
// shared feed; the tracker and position manager it owns are touched only
// from that loop, so instances need no locks of their own.
package bot

import (
	"context"
	"errors"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/execution"
	"solana-pump-swarm/internal/feed"
	"solana-pump-swarm/internal/observability"
	"solana-pump-swarm/internal/position"
	"solana-pump-swarm/internal/scoring"
	"solana-pump-swarm/internal/storage"
	"solana-pump-swarm/internal/tracker"
)

// drainTimeout bounds how long a stopping instance waits for in-flight
// sell tranches to report back.
const drainTimeout = 30 * time.Second

// Health is a point-in-time snapshot of one instance.
type Health struct {
	UserID            string
	Running           bool
	ActivePositions   int
	WatchedCandidates int
	QueueDrops        uint64
}

// Instance is one user's bot: a tracker and position manager driven by a
// feed subscription, buying through the shared execution engine.
type Instance struct {
	cfg    domain.BotConfig
	mux    *feed.Multiplexer
	engine *execution.Engine
	oracle scoring.Oracle

	sub       *feed.Subscription
	tracker   *tracker.Tracker
	positions *position.Manager

	// watching holds the mints this instance owns a trade-watch reference
	// for, keeping mux refcounts balanced across repeated sightings.
	watching map[string]struct{}

	tranches   chan execution.TrancheResult
	sellWG     sync.WaitGroup
	sellCtx    context.Context
	sellCancel context.CancelFunc

	healthCh chan chan Health
	cancel   context.CancelFunc
	done     chan struct{}

	logger  *log.Logger
	metrics *observability.Metrics
}

// InstanceOption configures optional instance collaborators.
type InstanceOption func(*Instance)

// WithOracle attaches the external classifier gate to the tracker.
func WithOracle(o scoring.Oracle) InstanceOption {
	return func(i *Instance) { i.oracle = o }
}

// WithLogger sets the instance logger.
func WithLogger(l *log.Logger) InstanceOption {
	return func(i *Instance) { i.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) InstanceOption {
	return func(i *Instance) { i.metrics = m }
}

// NewInstance creates a bot instance for one registered user. Call Start
// to begin trading.
func NewInstance(cfg domain.BotConfig, mux *feed.Multiplexer, positions storage.PositionStore, engine *execution.Engine, opts ...InstanceOption) *Instance {
	i := &Instance{
		cfg:      cfg,
		mux:      mux,
		engine:   engine,
		watching: make(map[string]struct{}),
		tranches: make(chan execution.TrancheResult, 16),
		healthCh: make(chan chan Health),
		done:     make(chan struct{}),
		logger:   log.New(os.Stdout, "[bot "+cfg.UserID+"] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(i)
	}

	topts := []tracker.Option{tracker.WithLogger(i.logger)}
	mopts := []position.Option{position.WithLogger(i.logger)}
	if i.oracle != nil {
		topts = append(topts, tracker.WithOracle(i.oracle))
	}
	if i.metrics != nil {
		topts = append(topts, tracker.WithMetrics(i.metrics))
		mopts = append(mopts, position.WithMetrics(i.metrics))
	}
	i.tracker = tracker.New(cfg.Risk, topts...)
	i.positions = position.NewManager(cfg.UserID, cfg.Risk, positions, mopts...)

	i.sellCtx, i.sellCancel = context.WithCancel(context.Background())
	return i
}

// Start resumes persisted positions, attaches to the feed and launches
// the event loop.
func (i *Instance) Start(ctx context.Context) error {
	if err := i.positions.Resume(ctx); err != nil {
		return err
	}

	i.sub = i.mux.Subscribe("bot-" + i.cfg.UserID)

	// Resumed positions need their trade marks again; ones interrupted
	// mid-exit pick the staged sell back up from the sold fraction.
	for _, p := range i.positions.Active() {
		i.watch(p.Mint)
		if p.ExitReason != "" {
			i.startStagedSell(&position.ExitSignal{Position: p, Reason: p.ExitReason})
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	go i.run(runCtx)
	return nil
}

// Stop shuts the event loop down and waits for in-flight sell tranches
// to finish. Positions stay persisted and resume on the next Start.
func (i *Instance) Stop() {
	if i.cancel != nil {
		i.cancel()
	}
	<-i.done
}

// Health reports the instance's current state. The snapshot is taken on
// the event loop; a stopped instance reports Running false.
func (i *Instance) Health(ctx context.Context) Health {
	req := make(chan Health, 1)
	select {
	case i.healthCh <- req:
		select {
		case h := <-req:
			return h
		case <-ctx.Done():
		case <-i.done:
		}
	case <-ctx.Done():
	case <-i.done:
	}
	return Health{UserID: i.cfg.UserID}
}

// UserID returns the owning user.
func (i *Instance) UserID() string {
	return i.cfg.UserID
}

func (i *Instance) run(ctx context.Context) {
	defer close(i.done)
	defer i.releaseWatches()
	defer i.sub.Close()
	defer i.drainSells()
	defer func() {
		if r := recover(); r != nil {
			if i.metrics != nil {
				i.metrics.BotPanics.Inc()
			}
			i.logger.Printf("bot loop panicked: %v\n%s", r, debug.Stack())
		}
	}()

	i.loop(ctx)
}

func (i *Instance) loop(ctx context.Context) {
	ticker := time.NewTicker(i.cfg.Risk.MonitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-i.sub.Events():
			if !ok {
				return
			}
			i.handleEvent(ctx, &ev)
		case r := <-i.tranches:
			i.handleTranche(ctx, r)
		case <-ticker.C:
			i.handleTick(ctx)
		case req := <-i.healthCh:
			req <- Health{
				UserID:            i.cfg.UserID,
				Running:           true,
				ActivePositions:   i.positions.ActiveCount(),
				WatchedCandidates: i.tracker.WatchingCount(),
				QueueDrops:        i.sub.Drops(),
			}
		}
	}
}

func (i *Instance) handleEvent(ctx context.Context, ev *domain.FeedEvent) {
	switch ev.Type {
	case domain.EventTokenCreated:
		i.handleCreation(ev.Token)
	case domain.EventTrade:
		i.handleTrade(ctx, ev.Trade)
	}
}

func (i *Instance) handleCreation(tok *domain.TokenTelemetry) {
	if tok == nil {
		return
	}
	_, known := i.tracker.Candidate(tok.Mint)
	i.tracker.OnTokenCreated(tok, time.Now().UnixMilli())
	if known {
		return
	}
	if cand, ok := i.tracker.Candidate(tok.Mint); ok && cand.State == domain.CandidateWatching {
		i.watch(tok.Mint)
	}
}

func (i *Instance) handleTrade(ctx context.Context, ev *domain.TradeEvent) {
	if ev == nil {
		return
	}

	// An active position takes the trade as a mark update.
	if _, held := i.positions.Get(ev.Mint); held {
		if sig := i.positions.UpdateMarketCap(ctx, ev.Mint, ev.MarketCapSol); sig != nil {
			i.startStagedSell(sig)
		}
		return
	}

	sig := i.tracker.OnTrade(ctx, ev, time.Now().UnixMilli())
	if sig == nil {
		i.unwatchSettled(ev.Mint)
		return
	}
	i.executeBuy(ctx, sig)
}

// executeBuy runs the buy synchronously on the event loop so the tracker
// is settled before the next event is processed.
func (i *Instance) executeBuy(ctx context.Context, sig *tracker.BuySignal) {
	mint := sig.Token.Mint

	if i.positions.ActiveCount() >= i.cfg.Risk.MaxConcurrentPositions {
		i.tracker.MarkRejected(mint, domain.RejectCapacity, time.Now().UnixMilli())
		i.unwatch(mint)
		if i.metrics != nil {
			i.metrics.CapacityRejects.Inc()
		}
		return
	}

	fill, err := i.engine.Buy(ctx, mint, i.cfg.Risk.BuyAmountSol)
	if err != nil {
		i.logger.Printf("buy %s failed: %v", mint, err)
		i.tracker.MarkRejected(mint, domain.RejectExecution, time.Now().UnixMilli())
		i.unwatch(mint)
		return
	}

	p, err := i.positions.Open(ctx, sig.Token, fill.AmountSol, fill.Ref, time.Now().UnixMilli())
	if err != nil {
		reason := domain.RejectExecution
		if errors.Is(err, position.ErrCapacityExceeded) {
			reason = domain.RejectCapacity
		}
		i.logger.Printf("open %s after buy failed: %v", mint, err)
		i.tracker.MarkRejected(mint, reason, time.Now().UnixMilli())
		i.unwatch(mint)
		return
	}

	i.tracker.MarkBought(mint, time.Now().UnixMilli())
	if err := i.engine.RecordBuy(ctx, p, fill); err != nil {
		i.logger.Printf("record buy for %s failed: %v", mint, err)
	}
	// The trade watch stays: the position needs mark updates.
}

func (i *Instance) handleTranche(ctx context.Context, r execution.TrancheResult) {
	if r.Err != nil {
		// Cancellation means shutdown, not failure: the position stays
		// persisted with its sold fraction and resumes on the next run.
		if errors.Is(r.Err, context.Canceled) {
			return
		}
		i.logger.Printf("staged sell of %s failed: %v", r.Mint, r.Err)
		if err := i.positions.MarkErrored(ctx, r.Mint); err != nil {
			i.logger.Printf("mark errored %s: %v", r.Mint, err)
		}
		i.unwatch(r.Mint)
		return
	}

	if err := i.positions.ApplyTranche(ctx, r.Mint, r.Fraction, r.ProceedsSol, time.Now().UnixMilli()); err != nil {
		i.logger.Printf("apply tranche for %s: %v", r.Mint, err)
	}
	if r.Final {
		if _, held := i.positions.Get(r.Mint); !held {
			i.unwatch(r.Mint)
		}
	}
}

func (i *Instance) handleTick(ctx context.Context) {
	for _, sig := range i.positions.Tick(ctx) {
		i.startStagedSell(sig)
	}
	for _, mint := range i.tracker.Sweep(time.Now().UnixMilli()) {
		i.unwatch(mint)
	}
}

// startStagedSell hands a snapshot of the position to a sell goroutine.
// Results come back on the tranches channel; the loop applies them.
func (i *Instance) startStagedSell(sig *position.ExitSignal) {
	snapshot := *sig.Position
	reason := sig.Reason
	i.sellWG.Add(1)
	go func() {
		defer i.sellWG.Done()
		i.engine.StagedSell(i.sellCtx, snapshot, reason, i.cfg.Risk, i.tranches)
	}()
}

// drainSells stops the staged sells after their current tranche and
// applies every result they report before the loop tears down.
func (i *Instance) drainSells() {
	i.sellCancel()

	settled := make(chan struct{})
	go func() {
		i.sellWG.Wait()
		close(settled)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case r := <-i.tranches:
			i.handleTranche(ctx, r)
		case <-settled:
			for {
				select {
				case r := <-i.tranches:
					i.handleTranche(ctx, r)
				default:
					return
				}
			}
		case <-ctx.Done():
			i.logger.Printf("sell drain timed out")
			return
		}
	}
}

func (i *Instance) watch(mint string) {
	if _, ok := i.watching[mint]; ok {
		return
	}
	i.watching[mint] = struct{}{}
	if err := i.mux.WatchTrades(mint); err != nil {
		i.logger.Printf("watch trades for %s failed: %v", mint, err)
	}
}

func (i *Instance) unwatch(mint string) {
	if _, ok := i.watching[mint]; !ok {
		return
	}
	delete(i.watching, mint)
	if err := i.mux.UnwatchTrades(mint); err != nil {
		i.logger.Printf("unwatch trades for %s failed: %v", mint, err)
	}
}

// unwatchSettled drops the watch for a mint whose candidate reached a
// terminal non-bought state.
func (i *Instance) unwatchSettled(mint string) {
	cand, ok := i.tracker.Candidate(mint)
	if !ok || !cand.State.Terminal() || cand.State == domain.CandidateBought {
		return
	}
	i.unwatch(mint)
}

// releaseWatches returns every held trade-watch reference so other
// instances' refcounts stay intact after this one stops.
func (i *Instance) releaseWatches() {
	for mint := range i.watching {
		delete(i.watching, mint)
		if err := i.mux.UnwatchTrades(mint); err != nil {
			i.logger.Printf("unwatch trades for %s failed: %v", mint, err)
		}
	}
}
