// Package wallet validates opaque wallet references and mint addresses,
// and derives the bonding-curve PDA used by the simulated executor.
// Custody itself (keys, signing) lives in an external collaborator; this
// package never sees private material.
package wallet

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PumpProgramID is the pump.fun bonding curve program.
const PumpProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// ValidateMint checks that s is a base58-encoded 32-byte public key.
// Mints may be PDAs, so no curve check is applied.
func ValidateMint(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode mint %q: %w", s, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("mint %q: expected 32 bytes, got %d", s, len(raw))
	}
	return nil
}

// ValidateWalletRef checks that s is a base58-encoded 32-byte public key
// lying on the ed25519 curve. User wallets are keypair-backed and must be
// on-curve; an off-curve address cannot sign and would make every
// submission fail permanently.
func ValidateWalletRef(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode wallet ref %q: %w", s, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("wallet ref %q: expected 32 bytes, got %d", s, len(raw))
	}
	if !isOnCurve(raw) {
		return fmt.Errorf("wallet ref %q: off-curve address cannot sign", s)
	}
	return nil
}

// DeriveBondingCurvePDA derives the bonding-curve account for a mint.
// Seeds: ["bonding-curve", mint] under the pump program.
func DeriveBondingCurvePDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	programBytes, err := base58.Decode(PumpProgramID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}
	if len(mintBytes) != 32 || len(programBytes) != 32 {
		return "", fmt.Errorf("mint and program id must be 32 bytes")
	}

	seeds := [][]byte{
		[]byte("bonding-curve"),
		mintBytes,
	}

	pda := derivePDA(seeds, programBytes)
	if pda == "" {
		return "", fmt.Errorf("no valid bump for mint %s", mint)
	}
	return pda, nil
}

// derivePDA derives a Program Derived Address using the Solana algorithm:
// sha256(seeds || bump || program_id || "ProgramDerivedAddress"), taking
// the highest bump whose hash falls off the ed25519 curve.
func derivePDA(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
