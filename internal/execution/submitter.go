package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"solana-pump-swarm/internal/wallet"
)

// Fill is the outcome of one accepted submission.
type Fill struct {
	Ref       string  // execution reference (signature or simulation id)
	AmountSol float64 // spent for buys, proceeds for sells
}

// Submitter abstracts simulated versus real trade broadcast.
type Submitter interface {
	// SubmitBuy spends amountSol acquiring the mint.
	SubmitBuy(ctx context.Context, mint string, amountSol float64) (Fill, error)
	// SubmitSell liquidates a fraction of the holding. grossSol is the
	// mark value of that fraction; the returned proceeds reflect
	// execution variance around it.
	SubmitSell(ctx context.Context, mint string, fraction, grossSol float64) (Fill, error)
}

// SimOptions tune the paper-trading submitter.
type SimOptions struct {
	// SlippageLow/High bound the symmetric execution variance band.
	SlippageLow  float64
	SlippageHigh float64
	// Latency is the simulated submission round trip.
	Latency time.Duration
	// TransientRate is the probability of a retryable failure per call.
	TransientRate float64
	// PermanentRate is the probability of a fatal failure per call.
	PermanentRate float64
	// Seed makes a run reproducible; 0 seeds from the clock.
	Seed int64
}

// DefaultSimOptions returns a well-behaved paper-trading setup.
func DefaultSimOptions() SimOptions {
	return SimOptions{
		SlippageLow:  0.98,
		SlippageHigh: 1.02,
		Latency:      25 * time.Millisecond,
		Seed:         0,
	}
}

// SimSubmitter simulates trade broadcast against the bonding curve. It
// validates mints and derives the curve address the way a real
// submitter would, so malformed input fails here rather than on chain.
type SimSubmitter struct {
	opts SimOptions

	rng   *rand.Rand
	rngMu sync.Mutex
	seq   atomic.Uint64
}

// Compile-time interface check.
var _ Submitter = (*SimSubmitter)(nil)

// NewSimSubmitter creates a simulated submitter.
func NewSimSubmitter(opts SimOptions) *SimSubmitter {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimSubmitter{
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// SubmitBuy simulates an acquisition.
func (s *SimSubmitter) SubmitBuy(ctx context.Context, mint string, amountSol float64) (Fill, error) {
	if err := s.preflight(ctx, "buy", mint); err != nil {
		return Fill{}, err
	}
	if amountSol <= 0 {
		return Fill{}, NewPermanent("buy", fmt.Errorf("non-positive amount %.6f", amountSol))
	}
	return Fill{
		Ref:       s.ref("buy", mint),
		AmountSol: amountSol,
	}, nil
}

// SubmitSell simulates liquidating a fraction of the holding. Proceeds
// are the gross mark value scaled by a slippage factor drawn uniformly
// from the configured band.
func (s *SimSubmitter) SubmitSell(ctx context.Context, mint string, fraction, grossSol float64) (Fill, error) {
	if err := s.preflight(ctx, "sell", mint); err != nil {
		return Fill{}, err
	}
	if fraction <= 0 || fraction > 1 {
		return Fill{}, NewPermanent("sell", fmt.Errorf("fraction %.6f out of range", fraction))
	}
	return Fill{
		Ref:       s.ref("sell", mint),
		AmountSol: grossSol * s.slippage(),
	}, nil
}

// preflight validates the mint, applies latency and injects failures.
func (s *SimSubmitter) preflight(ctx context.Context, op, mint string) error {
	if err := wallet.ValidateMint(mint); err != nil {
		return NewPermanent(op, err)
	}
	// A real submitter needs the curve account for the instruction; an
	// underivable address is a hard failure.
	if _, err := wallet.DeriveBondingCurvePDA(mint); err != nil {
		return NewPermanent(op, fmt.Errorf("derive bonding curve: %w", err))
	}

	if s.opts.Latency > 0 {
		select {
		case <-time.After(s.opts.Latency):
		case <-ctx.Done():
			return NewTransient(op, ctx.Err())
		}
	}

	roll := s.roll()
	if roll < s.opts.PermanentRate {
		return NewPermanent(op, fmt.Errorf("simulated rejection"))
	}
	if roll < s.opts.PermanentRate+s.opts.TransientRate {
		return NewTransient(op, fmt.Errorf("simulated congestion"))
	}
	return nil
}

func (s *SimSubmitter) slippage() float64 {
	low, high := s.opts.SlippageLow, s.opts.SlippageHigh
	if high <= low {
		return low
	}
	s.rngMu.Lock()
	f := low + s.rng.Float64()*(high-low)
	s.rngMu.Unlock()
	return f
}

func (s *SimSubmitter) roll() float64 {
	if s.opts.TransientRate <= 0 && s.opts.PermanentRate <= 0 {
		return 1
	}
	s.rngMu.Lock()
	r := s.rng.Float64()
	s.rngMu.Unlock()
	return r
}

func (s *SimSubmitter) ref(op, mint string) string {
	n := s.seq.Add(1)
	short := mint
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("sim-%s-%s-%d", op, short, n)
}
