package domain

// TokenTelemetry is an immutable snapshot of a token's live metrics as
// reported by the upstream feed. Updates supersede the previous snapshot;
// a snapshot is never mutated in place.
type TokenTelemetry struct {
	Mint        string // token mint address
	Symbol      string
	Name        string
	URI         string
	CreatedAtMs int64 // Unix timestamp in milliseconds, first sighting

	// Live metrics (zero when the feed omitted the field)
	MarketCapSol  float64 // market cap in quote currency (SOL)
	TxnCount      int
	InitialBuySol float64 // creator's initial buy size in SOL
	HolderCount   int
	VSolBonding   float64 // virtual SOL in bonding curve
	VTokenBonding float64 // virtual tokens in bonding curve

	// Social links ("" when absent)
	Twitter  string
	Telegram string
	Website  string
}

// HasSocials reports whether any social link is present.
func (t *TokenTelemetry) HasSocials() bool {
	return t.Twitter != "" || t.Telegram != "" || t.Website != ""
}
