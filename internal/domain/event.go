package domain

// FeedEventType discriminates the FeedEvent union.
type FeedEventType string

const (
	EventTokenCreated FeedEventType = "TOKEN_CREATED"
	EventTrade        FeedEventType = "TRADE"
)

// TradeSide is the direction of an upstream trade event.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// TradeEvent is a single trade reported for an already-known mint.
type TradeEvent struct {
	Mint         string
	Side         TradeSide
	MarketCapSol float64 // market cap resulting from this trade
	SolAmount    float64
	TxnCount     int // total transaction count if reported, else 0
	HolderCount  int // holder count if reported, else 0
	Trader       string
	Signature    string
	TimestampMs  int64
}

// FeedEvent is the discriminated union broadcast to every subscriber:
// exactly one of Token or Trade is non-nil, selected by Type.
type FeedEvent struct {
	Type  FeedEventType
	Token *TokenTelemetry // EventTokenCreated
	Trade *TradeEvent     // EventTrade
}

// Mint returns the mint the event refers to.
func (e *FeedEvent) Mint() string {
	switch e.Type {
	case EventTokenCreated:
		if e.Token != nil {
			return e.Token.Mint
		}
	case EventTrade:
		if e.Trade != nil {
			return e.Trade.Mint
		}
	}
	return ""
}
