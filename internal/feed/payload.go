package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"solana-pump-swarm/internal/domain"
)

// ErrMalformedEvent indicates an upstream payload that cannot be decoded
// into a feed event. The multiplexer counts and skips these.
var ErrMalformedEvent = errors.New("malformed feed event")

// rawEvent mirrors the upstream wire format. txType discriminates token
// creations from trades.
type rawEvent struct {
	Mint          string  `json:"mint"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	URI           string  `json:"uri"`
	TxType        string  `json:"txType"`
	MarketCapSol  float64 `json:"marketCapSol"`
	InitialBuy    float64 `json:"initialBuy"`
	SolAmount     float64 `json:"solAmount"`
	TxnCount      int     `json:"txnCount"`
	HolderCount   int     `json:"holderCount"`
	VSolBonding   float64 `json:"vSolInBondingCurve"`
	VTokenBonding float64 `json:"vTokensInBondingCurve"`
	Signature     string  `json:"signature"`
	TraderPubkey  string  `json:"traderPublicKey"`
	Twitter       string  `json:"twitter"`
	Telegram      string  `json:"telegram"`
	Website       string  `json:"website"`
	Message       string  `json:"message"`
}

// DecodeEvent parses an upstream payload into a FeedEvent.
// Subscription acknowledgements decode to (nil, nil) and are skipped.
func DecodeEvent(data []byte) (*domain.FeedEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	// Acknowledgement frames carry a message field and no payload.
	if raw.Message != "" && raw.Mint == "" {
		return nil, nil
	}

	if raw.Mint == "" {
		return nil, fmt.Errorf("%w: missing mint", ErrMalformedEvent)
	}

	nowMs := time.Now().UnixMilli()

	switch raw.TxType {
	case "create":
		return &domain.FeedEvent{
			Type: domain.EventTokenCreated,
			Token: &domain.TokenTelemetry{
				Mint:          raw.Mint,
				Symbol:        raw.Symbol,
				Name:          raw.Name,
				URI:           raw.URI,
				CreatedAtMs:   nowMs,
				MarketCapSol:  raw.MarketCapSol,
				TxnCount:      raw.TxnCount,
				InitialBuySol: raw.InitialBuy,
				HolderCount:   raw.HolderCount,
				VSolBonding:   raw.VSolBonding,
				VTokenBonding: raw.VTokenBonding,
				Twitter:       raw.Twitter,
				Telegram:      raw.Telegram,
				Website:       raw.Website,
			},
		}, nil

	case "buy", "sell":
		return &domain.FeedEvent{
			Type: domain.EventTrade,
			Trade: &domain.TradeEvent{
				Mint:         raw.Mint,
				Side:         domain.TradeSide(raw.TxType),
				MarketCapSol: raw.MarketCapSol,
				SolAmount:    raw.SolAmount,
				TxnCount:     raw.TxnCount,
				HolderCount:  raw.HolderCount,
				Trader:       raw.TraderPubkey,
				Signature:    raw.Signature,
				TimestampMs:  nowMs,
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown txType %q", ErrMalformedEvent, raw.TxType)
	}
}
