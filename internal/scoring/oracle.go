package scoring

import (
	"context"
	"errors"

	"solana-pump-swarm/internal/domain"
)

// ErrOracleUnavailable indicates the external classifier could not be
// reached. Callers treat it as a veto: never buy on missing data.
var ErrOracleUnavailable = errors.New("scoring oracle unavailable")

// Classifier labels returned by the oracle.
const (
	LabelPump = "pump"
	LabelRug  = "rug"
)

// Oracle is the contract for the optional external ML classifier.
type Oracle interface {
	Predict(ctx context.Context, tok *domain.TokenTelemetry) (label string, confidence float64, err error)
}

// rugVetoConfidence is the minimum classifier confidence required for a
// rug verdict to override a heuristic buy signal.
const rugVetoConfidence = 0.5

// ApplyOracle runs the classifier over a buy-recommending score and
// applies its verdict. A nil oracle leaves the result untouched. An
// oracle error is returned so the caller can reject conservatively.
func ApplyOracle(ctx context.Context, oracle Oracle, tok *domain.TokenTelemetry, result domain.ScoreResult) (domain.ScoreResult, error) {
	if oracle == nil || !result.ShouldBuy {
		return result, nil
	}

	label, confidence, err := oracle.Predict(ctx, tok)
	if err != nil {
		return result, err
	}

	if label == LabelRug && confidence >= rugVetoConfidence {
		result.ShouldBuy = false
		result.Confidence = domain.ConfidenceLow
		result.Breakdown[domain.FactorOracleOverride] = -result.Total
	}
	return result, nil
}
