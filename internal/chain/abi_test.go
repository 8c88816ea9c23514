package chain

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func buildCalldata(selector string, args ...*big.Int) []byte {
	data := hexToBytes(selector)
	for _, a := range args {
		word := make([]byte, 32)
		a.FillBytes(word)
		data = append(data, word...)
	}
	return data
}

func TestSelectorAndArgs(t *testing.T) {
	tokens := big.NewInt(100_000)
	paid := big.NewInt(1_000_000)
	data := buildCalldata(SelectorBuyStable, tokens, paid)

	if got := Selector(data); got != SelectorBuyStable {
		t.Errorf("Selector = %q, want %q", got, SelectorBuyStable)
	}

	arg0, err := Uint256Arg(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if arg0.Cmp(tokens) != 0 {
		t.Errorf("arg0 = %s, want %s", arg0, tokens)
	}

	arg1, err := Uint256Arg(data, 1)
	if err != nil {
		t.Fatal(err)
	}
	if arg1.Cmp(paid) != 0 {
		t.Errorf("arg1 = %s, want %s", arg1, paid)
	}

	if _, err := Uint256Arg(data, 2); err == nil {
		t.Error("expected error for out-of-range argument")
	}
}

func TestSelectorTooShort(t *testing.T) {
	if got := Selector([]byte{0x01, 0x02}); got != "" {
		t.Errorf("expected empty selector, got %q", got)
	}
}

func paddedTopic(addr string) string {
	return "0x000000000000000000000000" + addr[2:]
}

func TestParseTransferLog(t *testing.T) {
	from := "0x1111111111111111111111111111111111111111"
	to := "0x2222222222222222222222222222222222222222"
	amount := big.NewInt(5_000_000)

	data := make([]byte, 32)
	amount.FillBytes(data)

	l := Log{
		Address: "0x55d398326f99059ff775485246999027b3197955",
		Topics:  []string{TopicERC20Transfer, paddedTopic(from), paddedTopic(to)},
		Data:    data,
	}

	gotFrom, gotTo, gotAmount, ok := ParseTransferLog(l)
	if !ok {
		t.Fatal("expected transfer log to parse")
	}
	if gotFrom != from || gotTo != to {
		t.Errorf("addresses = %s -> %s, want %s -> %s", gotFrom, gotTo, from, to)
	}
	if gotAmount.Cmp(amount) != 0 {
		t.Errorf("amount = %s, want %s", gotAmount, amount)
	}
}

func TestParseTransferLogRejectsOtherEvents(t *testing.T) {
	l := Log{
		Topics: []string{TopicTokensPurchased, paddedTopic("0x1111111111111111111111111111111111111111")},
		Data:   make([]byte, 64),
	}
	if _, _, _, ok := ParseTransferLog(l); ok {
		t.Error("transfer parser accepted a non-transfer event")
	}
}

func TestParseTokensPurchasedLog(t *testing.T) {
	buyer := "0x3333333333333333333333333333333333333333"
	paid := big.NewInt(250_000_000)
	tokens := big.NewInt(42_000)

	data := make([]byte, 64)
	paid.FillBytes(data[:32])
	tokens.FillBytes(data[32:])

	l := Log{
		Topics: []string{TopicTokensPurchased, paddedTopic(buyer)},
		Data:   data,
	}

	gotBuyer, gotPaid, gotTokens, ok := ParseTokensPurchasedLog(l)
	if !ok {
		t.Fatal("expected purchase log to parse")
	}
	if gotBuyer != buyer {
		t.Errorf("buyer = %s, want %s", gotBuyer, buyer)
	}
	if gotPaid.Cmp(paid) != 0 || gotTokens.Cmp(tokens) != 0 {
		t.Errorf("paid/tokens = %s/%s, want %s/%s", gotPaid, gotTokens, paid, tokens)
	}
}

func TestAddressEqual(t *testing.T) {
	if !AddressEqual("0xAbC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001") {
		t.Error("case-insensitive compare failed")
	}
	if AddressEqual("0x01", "0x02") {
		t.Error("distinct addresses compared equal")
	}
}

func TestEventTopicShape(t *testing.T) {
	// keccak topics are 32 bytes; selectors 4 bytes.
	if b, _ := hex.DecodeString(TopicERC20Transfer[2:]); len(b) != 32 {
		t.Errorf("topic length = %d bytes", len(b))
	}
	if b, _ := hex.DecodeString(SelectorBuyNative[2:]); len(b) != 4 {
		t.Errorf("selector length = %d bytes", len(b))
	}
}
