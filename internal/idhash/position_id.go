package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id using SHA256.
// Formula: SHA256(user_id|mint|entry_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(userID, mint string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", userID, mint, entryTimeMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeFillID computes a deterministic fill_id for one executed
// submission. The cumulative sold fraction disambiguates tranches of the
// same staged sell.
// Formula: SHA256(position_id|side|cumulative_fraction|executed_at_ms)
func ComputeFillID(positionID, side string, cumulativeFraction float64, executedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%.9f|%d", positionID, side, cumulativeFraction, executedAtMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
