package models

import "testing"

func TestIsValidTxTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{TxStatusPending, TxStatusCompleted, true},
		{TxStatusPending, TxStatusFailed, true},

		// Terminal states never move
		{TxStatusCompleted, TxStatusFailed, false},
		{TxStatusCompleted, TxStatusPending, false},
		{TxStatusFailed, TxStatusCompleted, false},
		{TxStatusFailed, TxStatusPending, false},

		{"nonexistent", TxStatusCompleted, false},
		{TxStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTxTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTxTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalTxStatuses(t *testing.T) {
	for _, status := range []string{TxStatusCompleted, TxStatusFailed} {
		if !IsTerminalTxStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
		if len(ValidTxTransitions[status]) != 0 {
			t.Errorf("terminal status %q should have no transitions", status)
		}
	}
	if IsTerminalTxStatus(TxStatusPending) {
		t.Error("pending should not be terminal")
	}
}

func TestVerifiedAddressFor(t *testing.T) {
	sol := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	evm := "0x8894e0a0c962cb723c1976a4421c95949be2d4e3"

	u := &User{SolanaAddress: &sol, EVMAddress: &evm}
	if u.VerifiedAddressFor(ChainSolana) != nil {
		t.Error("unverified solana wallet must not yield a payout address")
	}

	u.SolanaVerified = true
	if got := u.VerifiedAddressFor(ChainSolana); got == nil || *got != sol {
		t.Errorf("expected solana address %q, got %v", sol, got)
	}
	if u.VerifiedAddressFor(ChainBSC) != nil {
		t.Error("evm flag not set, expected nil")
	}

	u.EVMVerified = true
	if got := u.VerifiedAddressFor(ChainBSC); got == nil || *got != evm {
		t.Errorf("expected evm address %q, got %v", evm, got)
	}
	if u.VerifiedAddressFor("ton") != nil {
		t.Error("unknown chain should yield nil")
	}
}
