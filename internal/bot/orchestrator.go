package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/execution"
	"solana-pump-swarm/internal/feed"
	"solana-pump-swarm/internal/observability"
	"solana-pump-swarm/internal/scoring"
	"solana-pump-swarm/internal/storage"
	"solana-pump-swarm/internal/wallet"
)

// ErrAlreadyRunning is returned by Start when the user's bot is running.
var ErrAlreadyRunning = errors.New("bot already running for user")

// ErrNotRunning is returned by Stop when no bot is running for the user.
var ErrNotRunning = errors.New("no running bot for user")

// ErrSwarmFull is returned by Start at the orchestrator's bot cap.
var ErrSwarmFull = errors.New("bot capacity reached")

// Config tunes the orchestrator.
type Config struct {
	// MaxBots caps concurrently running instances.
	MaxBots int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{MaxBots: 500}
}

// SwarmHealth is the aggregate health report.
type SwarmHealth struct {
	FeedHealthy bool
	Bots        []Health
}

// Orchestrator registers, starts and stops bot instances. The registry
// map is the only state shared across callers and is mutex-guarded;
// everything inside an instance belongs to its own loop.
type Orchestrator struct {
	mux       *feed.Multiplexer
	positions storage.PositionStore
	configs   storage.BotConfigStore
	engine    *execution.Engine
	oracle    scoring.Oracle
	config    Config

	mu   sync.Mutex
	bots map[string]*Instance

	logger  *log.Logger
	metrics *observability.Metrics
}

// OrchestratorOption configures optional orchestrator collaborators.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorOracle attaches the classifier gate passed to every
// instance.
func WithOrchestratorOracle(o scoring.Oracle) OrchestratorOption {
	return func(or *Orchestrator) { or.oracle = o }
}

// WithOrchestratorLogger sets the orchestrator logger.
func WithOrchestratorLogger(l *log.Logger) OrchestratorOption {
	return func(or *Orchestrator) { or.logger = l }
}

// WithOrchestratorMetrics sets the metrics sink.
func WithOrchestratorMetrics(m *observability.Metrics) OrchestratorOption {
	return func(or *Orchestrator) { or.metrics = m }
}

// NewOrchestrator creates the bot orchestrator.
func NewOrchestrator(mux *feed.Multiplexer, positions storage.PositionStore, configs storage.BotConfigStore, engine *execution.Engine, config Config, opts ...OrchestratorOption) *Orchestrator {
	if config.MaxBots <= 0 {
		config.MaxBots = DefaultConfig().MaxBots
	}
	o := &Orchestrator{
		mux:       mux,
		positions: positions,
		configs:   configs,
		engine:    engine,
		config:    config,
		bots:      make(map[string]*Instance),
		logger:    log.New(os.Stdout, "[swarm] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start registers and launches a bot for the user. The configuration is
// persisted first so the bot survives a process restart.
func (o *Orchestrator) Start(ctx context.Context, cfg domain.BotConfig) error {
	if cfg.UserID == "" {
		return fmt.Errorf("%w: empty user id", storage.ErrInvalidInput)
	}
	if err := wallet.ValidateWalletRef(cfg.WalletRef); err != nil {
		return fmt.Errorf("wallet ref: %w", err)
	}
	if err := cfg.Risk.Validate(); err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	if cfg.CreatedAt == 0 {
		cfg.CreatedAt = time.Now().UnixMilli()
	}

	// Refuse before persisting so a rejected Start never overwrites the
	// registration a running bot was started with.
	o.mu.Lock()
	_, running := o.bots[cfg.UserID]
	full := len(o.bots) >= o.config.MaxBots
	o.mu.Unlock()
	if running {
		return ErrAlreadyRunning
	}
	if full {
		return ErrSwarmFull
	}

	if err := o.configs.Put(ctx, &cfg); err != nil {
		return fmt.Errorf("persist bot config: %w", err)
	}
	return o.launch(ctx, cfg)
}

// Resume relaunches every persisted bot registration, typically at
// process startup. Individual failures are logged and skipped.
func (o *Orchestrator) Resume(ctx context.Context) error {
	cfgs, err := o.configs.List(ctx)
	if err != nil {
		return fmt.Errorf("list bot configs: %w", err)
	}
	for _, cfg := range cfgs {
		if err := o.launch(ctx, *cfg); err != nil {
			o.logger.Printf("resume bot %s failed: %v", cfg.UserID, err)
		}
	}
	return nil
}

func (o *Orchestrator) launch(ctx context.Context, cfg domain.BotConfig) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, running := o.bots[cfg.UserID]; running {
		return ErrAlreadyRunning
	}
	if len(o.bots) >= o.config.MaxBots {
		return ErrSwarmFull
	}

	var iopts []InstanceOption
	if o.oracle != nil {
		iopts = append(iopts, WithOracle(o.oracle))
	}
	if o.metrics != nil {
		iopts = append(iopts, WithMetrics(o.metrics))
	}

	inst := NewInstance(cfg, o.mux, o.positions, o.engine, iopts...)
	if err := inst.Start(ctx); err != nil {
		return fmt.Errorf("start bot %s: %w", cfg.UserID, err)
	}

	o.bots[cfg.UserID] = inst
	if o.metrics != nil {
		o.metrics.BotsRunning.Set(float64(len(o.bots)))
	}
	o.logger.Printf("bot %s started (%d running)", cfg.UserID, len(o.bots))
	return nil
}

// Stop halts the user's bot. The registration and its positions stay
// persisted; Start or Resume picks them back up.
func (o *Orchestrator) Stop(userID string) error {
	o.mu.Lock()
	inst, ok := o.bots[userID]
	if ok {
		delete(o.bots, userID)
	}
	n := len(o.bots)
	o.mu.Unlock()

	if !ok {
		return ErrNotRunning
	}

	inst.Stop()
	if o.metrics != nil {
		o.metrics.BotsRunning.Set(float64(n))
	}
	o.logger.Printf("bot %s stopped (%d running)", userID, n)
	return nil
}

// Deregister stops the user's bot, if running, and removes the persisted
// registration so it no longer resumes.
func (o *Orchestrator) Deregister(ctx context.Context, userID string) error {
	if err := o.Stop(userID); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return o.configs.Delete(ctx, userID)
}

// StopAll halts every running bot concurrently and waits for them.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	insts := make([]*Instance, 0, len(o.bots))
	for id, inst := range o.bots {
		insts = append(insts, inst)
		delete(o.bots, id)
	}
	o.mu.Unlock()

	var wg sync.WaitGroup
	for _, inst := range insts {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			inst.Stop()
		}(inst)
	}
	wg.Wait()

	if o.metrics != nil {
		o.metrics.BotsRunning.Set(0)
	}
	o.logger.Printf("stopped %d bots", len(insts))
}

// Running returns the user ids of the currently running bots.
func (o *Orchestrator) Running() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.bots))
	for id := range o.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Health reports the feed state and a snapshot of every running bot.
func (o *Orchestrator) Health(ctx context.Context) SwarmHealth {
	o.mu.Lock()
	insts := make([]*Instance, 0, len(o.bots))
	for _, inst := range o.bots {
		insts = append(insts, inst)
	}
	o.mu.Unlock()

	h := SwarmHealth{FeedHealthy: o.mux.Healthy()}
	for _, inst := range insts {
		h.Bots = append(h.Bots, inst.Health(ctx))
	}
	sort.Slice(h.Bots, func(i, j int) bool { return h.Bots[i].UserID < h.Bots[j].UserID })
	return h
}
