package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Presale contract surface. Selectors and topics are derived from the
// canonical signatures at init so they stay in sync with the contract ABI.
var (
	SelectorBuyNative = funcSelector("buyTokensNative(uint256)")
	SelectorBuyStable = funcSelector("buyTokensUSDT(uint256,uint256)")

	TopicTokensPurchased = eventTopic("TokensPurchased(address,uint256,uint256)")
	TopicERC20Transfer   = eventTopic("Transfer(address,address,uint256)")
)

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func funcSelector(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature))[:4])
}

func eventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature)))
}

// Selector returns the 4-byte function selector of EVM calldata.
func Selector(input []byte) string {
	if len(input) < 4 {
		return ""
	}
	return "0x" + hex.EncodeToString(input[:4])
}

// Uint256Arg extracts the idx-th static argument from EVM calldata.
func Uint256Arg(input []byte, idx int) (*big.Int, error) {
	start := 4 + 32*idx
	if len(input) < start+32 {
		return nil, fmt.Errorf("calldata too short for argument %d", idx)
	}
	return new(big.Int).SetBytes(input[start : start+32]), nil
}

// ParseTransferLog decodes an ERC20 Transfer event log.
func ParseTransferLog(l Log) (from, to string, amount *big.Int, ok bool) {
	if len(l.Topics) != 3 || !strings.EqualFold(l.Topics[0], TopicERC20Transfer) {
		return "", "", nil, false
	}
	if len(l.Data) < 32 {
		return "", "", nil, false
	}
	return topicAddress(l.Topics[1]), topicAddress(l.Topics[2]), new(big.Int).SetBytes(l.Data[:32]), true
}

// ParseTokensPurchasedLog decodes the presale purchase event
// TokensPurchased(address buyer, uint256 paid, uint256 tokens).
func ParseTokensPurchasedLog(l Log) (buyer string, paid, tokens *big.Int, ok bool) {
	if len(l.Topics) < 2 || !strings.EqualFold(l.Topics[0], TopicTokensPurchased) {
		return "", nil, nil, false
	}
	if len(l.Data) < 64 {
		return "", nil, nil, false
	}
	return topicAddress(l.Topics[1]),
		new(big.Int).SetBytes(l.Data[:32]),
		new(big.Int).SetBytes(l.Data[32:64]),
		true
}

// topicAddress extracts the 20-byte address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) < 40 {
		return ""
	}
	return "0x" + t[len(t)-40:]
}

// AddressEqual compares two EVM addresses ignoring case and 0x prefixes.
func AddressEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
