package wallet

import (
	"strings"
	"testing"
)

// System program address: valid base58, 32 bytes, on-curve.
const systemProgram = "11111111111111111111111111111111"

func TestValidateMint(t *testing.T) {
	if err := ValidateMint(PumpProgramID); err != nil {
		t.Errorf("pump program id should validate as mint: %v", err)
	}

	if err := ValidateMint("not-base58-0OIl"); err == nil {
		t.Error("expected error for invalid base58")
	}

	// Valid base58 but wrong length
	if err := ValidateMint("abc"); err == nil {
		t.Error("expected error for short key")
	}
}

func TestValidateWalletRef(t *testing.T) {
	if err := ValidateWalletRef(systemProgram); err != nil {
		t.Errorf("system program should be on-curve: %v", err)
	}

	if err := ValidateWalletRef("abc"); err == nil {
		t.Error("expected error for short key")
	}
}

func TestDeriveBondingCurvePDA(t *testing.T) {
	pda, err := DeriveBondingCurvePDA(systemProgram)
	if err != nil {
		t.Fatalf("DeriveBondingCurvePDA: %v", err)
	}
	if pda == "" {
		t.Fatal("empty PDA")
	}

	// Deterministic
	again, err := DeriveBondingCurvePDA(systemProgram)
	if err != nil {
		t.Fatalf("second derivation: %v", err)
	}
	if pda != again {
		t.Errorf("PDA not deterministic: %s vs %s", pda, again)
	}

	// PDA must be off-curve by construction
	if err := ValidateWalletRef(pda); err == nil {
		t.Error("derived PDA should not validate as a wallet ref")
	}
	if !strings.ContainsAny(pda, "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz") {
		t.Errorf("PDA not base58: %s", pda)
	}
}
