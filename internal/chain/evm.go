package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// finalizedConfirmations is the block depth treated as final on the EVM
// chain when the caller asks for finalized state.
const finalizedConfirmations = 3

// EVMClient reads transactions from an EVM JSON-RPC node.
type EVMClient struct {
	rpcURL     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewEVMClient(rpcURL string, log *zap.Logger) *EVMClient {
	return &EVMClient{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *EVMClient) Chain() string { return BSC }

type evmTx struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Input string `json:"input"`
}

type evmReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	Logs        []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
		Data    string   `json:"data"`
	} `json:"logs"`
}

func (c *EVMClient) GetTransaction(ctx context.Context, txHash string, finality string) (*Receipt, error) {
	var tx *evmTx
	if err := c.call(ctx, "eth_getTransactionByHash", []any{txHash}, &tx); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}

	var rec *evmReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		// Known to the mempool but not mined yet.
		return nil, ErrNotFound
	}

	block := hexToUint64(rec.BlockNumber)
	if finality == FinalityFinalized {
		var latestHex string
		if err := c.call(ctx, "eth_blockNumber", []any{}, &latestHex); err != nil {
			return nil, err
		}
		if hexToUint64(latestHex) < block+finalizedConfirmations {
			return nil, ErrNotFound
		}
	}

	receipt := &Receipt{
		TxHash:   txHash,
		Chain:    BSC,
		Success:  rec.Status == "0x1",
		Block:    block,
		From:     strings.ToLower(tx.From),
		To:       strings.ToLower(tx.To),
		ValueWei: hexToBig(tx.Value),
		Input:    hexToBytes(tx.Input),
	}
	if !receipt.Success {
		receipt.Err = "reverted"
	}
	for _, l := range rec.Logs {
		receipt.Logs = append(receipt.Logs, Log{
			Address: strings.ToLower(l.Address),
			Topics:  l.Topics,
			Data:    hexToBytes(l.Data),
		})
	}

	return receipt, nil
}

func (c *EVMClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("evm rpc unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("evm rpc returned %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("evm rpc decode: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("evm rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		if _, ok := out.(**evmTx); ok {
			*out.(**evmTx) = nil
			return nil
		}
		if _, ok := out.(**evmReceipt); ok {
			*out.(**evmReceipt) = nil
			return nil
		}
		return ErrNotFound
	}
	return json.Unmarshal(rpcResp.Result, out)
}

func hexToBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func hexToBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func hexToUint64(s string) uint64 {
	return hexToBig(s).Uint64()
}
