// Package execution performs or simulates buys and staged multi-tranche
// sells, abstracting over simulation versus real broadcast.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/idhash"
	"solana-pump-swarm/internal/observability"
	"solana-pump-swarm/internal/storage"
)

// Config tunes the retry policy shared by buys and sell tranches.
type Config struct {
	// MaxAttempts caps submissions per operation, first try included.
	MaxAttempts int
	// RetryBackoff is the initial delay between attempts.
	RetryBackoff time.Duration
	// MaxRetryBackoff bounds the exponential growth.
	MaxRetryBackoff time.Duration
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		RetryBackoff:    200 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	}
}

// submitTimeout bounds one submission, retries included.
const submitTimeout = 15 * time.Second

// TrancheResult reports one staged-sell tranche back to the owning bot
// instance, which applies it to the position on its own event loop.
type TrancheResult struct {
	Mint        string
	Reason      string
	Fraction    float64 // fraction sold by this tranche, 0 on failure
	ProceedsSol float64
	Ref         string
	Err         error // non-nil means the staged sell aborted
	Final       bool  // no more tranches will follow
}

// Engine drives submissions with bounded retries and records every
// accepted fill. One engine is shared by all bot instances.
type Engine struct {
	submitter Submitter
	trades    storage.TradeStore
	archive   storage.TradeArchive // optional, best effort
	config    Config

	logger  *log.Logger
	metrics *observability.Metrics
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithArchive attaches the analytics fill archive.
func WithArchive(a storage.TradeArchive) Option {
	return func(e *Engine) { e.archive = a }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an execution engine.
func NewEngine(submitter Submitter, trades storage.TradeStore, config Config, opts ...Option) *Engine {
	e := &Engine{
		submitter: submitter,
		trades:    trades,
		config:    config,
		logger:    log.New(os.Stdout, "[exec] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Buy submits a single acquisition, retrying transient failures with
// backoff. A permanent failure aborts position creation.
func (e *Engine) Buy(ctx context.Context, mint string, amountSol float64) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	started := time.Now()
	fill, err := e.withRetry(ctx, "buy", func() (Fill, error) {
		return e.submitter.SubmitBuy(ctx, mint, amountSol)
	})
	if err != nil {
		return Fill{}, err
	}
	if e.metrics != nil {
		e.metrics.BuysExecuted.Inc()
		e.metrics.ExecLatency.Observe(time.Since(started).Seconds())
	}
	return fill, nil
}

// RecordBuy persists the buy fill for an opened position. A duplicate
// fill id means the record already exists and is not an error.
func (e *Engine) RecordBuy(ctx context.Context, p *domain.Position, fill Fill) error {
	tf := &domain.TradeFill{
		FillID:     idhash.ComputeFillID(p.PositionID, string(domain.FillBuy), 0, p.EntryTimeMs),
		PositionID: p.PositionID,
		UserID:     p.UserID,
		Mint:       p.Mint,
		Side:       domain.FillBuy,
		Fraction:   1.0,
		AmountSol:  fill.AmountSol,
		Ref:        fill.Ref,
		ExecutedAt: p.EntryTimeMs,
	}
	return e.record(ctx, tf)
}

// StagedSell liquidates a position's remaining fraction in equal
// tranches at a fixed cadence, reporting each tranche on results. The
// sell resumes from the fraction already sold, never from zero, and the
// total submitted fraction never exceeds 1.0.
//
// The position argument is a snapshot owned by this goroutine; the
// authoritative Position is mutated only by the instance loop applying
// the results.
func (e *Engine) StagedSell(ctx context.Context, p domain.Position, reason string, risk domain.RiskConfig, results chan<- TrancheResult) {
	portions := risk.SellPortions
	if portions <= 0 {
		portions = 1
	}
	cadence := risk.SellWindow / time.Duration(portions)
	per := 1.0 / float64(portions)

	sold := p.TranchesSold
	first := true

	for sold < 1.0-domain.FractionEpsilon {
		if !first {
			select {
			case <-time.After(cadence):
			case <-ctx.Done():
				// Shutdown between tranches: report what is done and stop.
				e.send(ctx, results, TrancheResult{Mint: p.Mint, Reason: reason, Err: ctx.Err(), Final: true})
				return
			}
		}
		first = false

		fraction := per
		if remaining := 1.0 - sold; fraction > remaining {
			fraction = remaining
		}
		grossSol := p.EntryAmountSol * (p.CurrentMC / p.EntryMC) * fraction

		// The submission context is detached from ctx so a shutdown lets
		// the current tranche finish instead of cutting it mid-flight.
		subCtx, cancelSub := context.WithTimeout(context.Background(), submitTimeout)
		fill, err := e.withRetry(subCtx, "sell", func() (Fill, error) {
			return e.submitter.SubmitSell(subCtx, p.Mint, fraction, grossSol)
		})
		cancelSub()
		if err != nil {
			// Fraction actually sold so far stays preserved on the position.
			e.logger.Printf("staged sell of %s aborted at %.2f sold: %v", p.Mint, sold, err)
			e.send(ctx, results, TrancheResult{Mint: p.Mint, Reason: reason, Err: err, Final: true})
			return
		}

		sold += fraction
		executedAt := time.Now().UnixMilli()
		tf := &domain.TradeFill{
			FillID:     idhash.ComputeFillID(p.PositionID, string(domain.FillSell), sold, executedAt),
			PositionID: p.PositionID,
			UserID:     p.UserID,
			Mint:       p.Mint,
			Side:       domain.FillSell,
			Fraction:   fraction,
			AmountSol:  fill.AmountSol,
			Ref:        fill.Ref,
			Reason:     reason,
			ExecutedAt: executedAt,
		}
		if err := e.record(ctx, tf); err != nil {
			e.logger.Printf("record tranche for %s failed: %v", p.Mint, err)
		}
		if e.metrics != nil {
			e.metrics.TranchesSold.Inc()
		}

		e.send(ctx, results, TrancheResult{
			Mint:        p.Mint,
			Reason:      reason,
			Fraction:    fraction,
			ProceedsSol: fill.AmountSol,
			Ref:         fill.Ref,
			Final:       sold >= 1.0-domain.FractionEpsilon,
		})
	}
}

// withRetry submits through the retry policy: transient failures back
// off exponentially up to the attempt cap, permanent failures abort.
func (e *Engine) withRetry(ctx context.Context, op string, submit func() (Fill, error)) (Fill, error) {
	backoff := e.config.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		fill, err := submit()
		if err == nil {
			return fill, nil
		}
		lastErr = err

		if IsPermanent(err) {
			if e.metrics != nil {
				e.metrics.ExecFailures.WithLabelValues("permanent").Inc()
			}
			return Fill{}, err
		}
		if attempt == e.config.MaxAttempts {
			break
		}

		if e.metrics != nil {
			e.metrics.ExecRetries.Inc()
		}
		e.logger.Printf("%s attempt %d failed, retrying in %s: %v", op, attempt, backoff, err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Fill{}, NewTransient(op, ctx.Err())
		}
		backoff *= 2
		if backoff > e.config.MaxRetryBackoff {
			backoff = e.config.MaxRetryBackoff
		}
	}

	if e.metrics != nil {
		e.metrics.ExecFailures.WithLabelValues("transient").Inc()
	}
	return Fill{}, NewTransient(op, fmt.Errorf("attempts exhausted: %w", lastErr))
}

// record persists a fill and mirrors it to the archive. A duplicate
// primary key means the fill was already recorded.
func (e *Engine) record(ctx context.Context, tf *domain.TradeFill) error {
	if err := e.trades.Insert(ctx, tf); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		if e.metrics != nil {
			e.metrics.DBQueryErrors.WithLabelValues("trades", "insert").Inc()
		}
		return err
	}
	if e.archive != nil {
		if err := e.archive.Archive(ctx, []*domain.TradeFill{tf}); err != nil {
			if e.metrics != nil {
				e.metrics.DBQueryErrors.WithLabelValues("trade_archive", "insert").Inc()
			}
			e.logger.Printf("archive fill %s failed: %v", tf.FillID, err)
		}
	}
	return nil
}

// send delivers a tranche result without wedging on a stopped consumer.
// Delivery is preferred over cancellation so results already earned reach
// the shutdown drain.
func (e *Engine) send(ctx context.Context, results chan<- TrancheResult, r TrancheResult) {
	select {
	case results <- r:
		return
	default:
	}
	select {
	case results <- r:
	case <-ctx.Done():
	}
}
