package domain

// CandidateState is the lifecycle state of a watched token. A sighting
// below the watch floor never becomes a candidate; transitions are
// forward-only:
//
//	Watching -> {Bought, Rejected, Expired}
type CandidateState string

const (
	CandidateWatching CandidateState = "WATCHING"
	CandidateBought   CandidateState = "BOUGHT"
	CandidateRejected CandidateState = "REJECTED"
	CandidateExpired  CandidateState = "EXPIRED"
)

// Terminal reports whether the state admits no further transitions.
func (s CandidateState) Terminal() bool {
	return s == CandidateBought || s == CandidateRejected || s == CandidateExpired
}

// Rejection reasons recorded on terminal candidates.
const (
	RejectAboveWindow   = "above_entry_window"
	RejectLowScore      = "score_below_threshold"
	RejectScoringFailed = "scoring_unavailable"
	RejectCapacity      = "capacity_exceeded"
	RejectExecution     = "execution_failed"
)

// Candidate is a token being tracked from first sighting to a buy/reject
// decision. Owned by exactly one CandidateTracker; never shared.
type Candidate struct {
	Token           *TokenTelemetry // latest snapshot
	DiscoveredAtMs  int64
	State           CandidateState
	Score           *ScoreResult // set once scored
	RejectionReason string       // set when State == CandidateRejected
}
