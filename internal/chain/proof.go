package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// ProofPrefix is prepended to the server-issued nonce before signing, so a
// wallet signature over the challenge cannot be replayed as anything else.
const ProofPrefix = "presale-proof-v1:"

// ProofMessage builds the exact message a wallet must sign for a nonce.
func ProofMessage(nonce string) string {
	return ProofPrefix + nonce
}

// VerifySolanaOwnership checks an ed25519 signature over message made by
// the key behind a base58 Solana address.
func VerifySolanaOwnership(address, message, sigHex string) error {
	pub := base58.Decode(address)
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid solana address: decoded to %d bytes", len(pub))
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// VerifyEVMOwnership checks an EIP-191 personal-sign signature and that
// the recovered signer matches the claimed address.
func VerifyEVMOwnership(address, message, sigHex string) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}

	// eth_sign produces r||s||v; RecoverCompact wants the recovery header
	// first, with v in the 27/28 range.
	v := sig[64]
	if v < 27 {
		v += 27
	}
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], sig[:64])

	hash := personalSignHash(message)
	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return fmt.Errorf("signature recovery failed: %w", err)
	}

	recovered := pubkeyToAddress(pub.SerializeUncompressed())
	if !AddressEqual(recovered, address) {
		return fmt.Errorf("signer %s does not match address %s", recovered, address)
	}
	return nil
}

func personalSignHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return keccak256([]byte(prefixed))
}

// pubkeyToAddress derives the 0x address from an uncompressed secp256k1
// public key (0x04 || X || Y).
func pubkeyToAddress(uncompressed []byte) string {
	return "0x" + hex.EncodeToString(keccak256(uncompressed[1:])[12:])
}
