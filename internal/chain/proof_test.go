package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
)

func TestVerifySolanaOwnership_ValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	address := base58.Encode(pub)
	message := ProofMessage("nonce-12345")
	sig := ed25519.Sign(priv, []byte(message))

	if err := VerifySolanaOwnership(address, message, hex.EncodeToString(sig)); err != nil {
		t.Fatalf("expected valid proof, got error: %v", err)
	}
}

func TestVerifySolanaOwnership_WrongMessage(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	address := base58.Encode(pub)
	sig := ed25519.Sign(priv, []byte(ProofMessage("nonce-a")))

	err := VerifySolanaOwnership(address, ProofMessage("nonce-b"), hex.EncodeToString(sig))
	if err == nil {
		t.Fatal("expected error for signature over a different message")
	}
}

func TestVerifySolanaOwnership_BadAddress(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	sig := ed25519.Sign(priv, []byte("msg"))

	if err := VerifySolanaOwnership("abc", "msg", hex.EncodeToString(sig)); err == nil {
		t.Fatal("expected error for short address")
	}
}

func evmSign(t *testing.T, priv *btcec.PrivateKey, message string) string {
	t.Helper()
	compact := ecdsa.SignCompact(priv, personalSignHash(message), false)
	// SignCompact puts the recovery header first; wallets emit r||s||v.
	ethSig := make([]byte, 65)
	copy(ethSig, compact[1:])
	ethSig[64] = compact[0]
	return hex.EncodeToString(ethSig)
}

func TestVerifyEVMOwnership_ValidSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	address := pubkeyToAddress(priv.PubKey().SerializeUncompressed())

	message := ProofMessage("nonce-evm-1")
	sigHex := evmSign(t, priv, message)

	if err := VerifyEVMOwnership(address, message, sigHex); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}
}

func TestVerifyEVMOwnership_WrongSigner(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	other, _ := btcec.NewPrivateKey()
	otherAddr := pubkeyToAddress(other.PubKey().SerializeUncompressed())

	message := ProofMessage("nonce-evm-2")
	sigHex := evmSign(t, priv, message)

	if err := VerifyEVMOwnership(otherAddr, message, sigHex); err == nil {
		t.Fatal("expected mismatch error for wrong signer")
	}
}

func TestVerifyEVMOwnership_MalformedSignature(t *testing.T) {
	if err := VerifyEVMOwnership("0x0000000000000000000000000000000000000000", "msg", "abcd"); err == nil {
		t.Fatal("expected error for short signature")
	}
}
