package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SolanaClient reads transactions from a Solana JSON-RPC node.
type SolanaClient struct {
	rpcURL     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewSolanaClient(rpcURL string, log *zap.Logger) *SolanaClient {
	return &SolanaClient{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *SolanaClient) Chain() string { return Solana }

type solanaRPCRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type solanaTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int    `json:"decimals"`
	} `json:"uiTokenAmount"`
}

type solanaTxResult struct {
	Slot uint64 `json:"slot"`
	Meta *struct {
		Err               any                  `json:"err"`
		PreBalances       []uint64             `json:"preBalances"`
		PostBalances      []uint64             `json:"postBalances"`
		PreTokenBalances  []solanaTokenBalance `json:"preTokenBalances"`
		PostTokenBalances []solanaTokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

func (c *SolanaClient) GetTransaction(ctx context.Context, txHash string, finality string) (*Receipt, error) {
	params := []any{txHash, map[string]any{
		"encoding":                       "json",
		"commitment":                     finality,
		"maxSupportedTransactionVersion": 0,
	}}

	var result *solanaTxResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil || result.Meta == nil {
		return nil, ErrNotFound
	}

	receipt := &Receipt{
		TxHash:      txHash,
		Chain:       Solana,
		Success:     result.Meta.Err == nil,
		Block:       result.Slot,
		AccountKeys: result.Transaction.Message.AccountKeys,
	}
	if result.Meta.Err != nil {
		receipt.Err = fmt.Sprintf("%v", result.Meta.Err)
	}
	receipt.PreBalances = result.Meta.PreBalances
	receipt.PostBalances = result.Meta.PostBalances
	receipt.PreTokenBalances = mapTokenBalances(result.Meta.PreTokenBalances)
	receipt.PostTokenBalances = mapTokenBalances(result.Meta.PostTokenBalances)
	if len(receipt.AccountKeys) > 0 {
		receipt.From = receipt.AccountKeys[0]
	}

	return receipt, nil
}

func mapTokenBalances(in []solanaTokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		amount, ok := new(big.Int).SetString(b.UITokenAmount.Amount, 10)
		if !ok {
			amount = big.NewInt(0)
		}
		out = append(out, TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			Amount:       amount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out
}

func (c *SolanaClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(solanaRPCRequest{Jsonrpc: "2.0", ID: 1, Method: method, Params: params})
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
		return fmt.Errorf("solana rpc unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana rpc returned %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("solana rpc decode: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("solana rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return ErrNotFound
	}
	return json.Unmarshal(rpcResp.Result, out)
}
