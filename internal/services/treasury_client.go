package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TreasuryClient talks to the internal treasury signer that holds the
// token mint authority. The backend never touches private keys itself.
type TreasuryClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewTreasuryClient(baseURL string, log *zap.Logger) *TreasuryClient {
	return &TreasuryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type transferRequest struct {
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type transferResult struct {
	TxRef string `json:"tx_ref"`
}

// SendTokens requests a bonus-token transfer. The payment id doubles as
// the idempotency key on the treasury side.
func (c *TreasuryClient) SendTokens(ctx context.Context, chainName, address, amountTokens string, paymentID uuid.UUID) (string, error) {
	body, err := json.Marshal(transferRequest{
		Chain:       chainName,
		Address:     address,
		Amount:      amountTokens,
		ExternalRef: paymentID.String(),
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/internal/transfers", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", paymentID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("treasury service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("treasury service returned %d: %s", resp.StatusCode, string(b))
	}

	var result transferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.TxRef == "" {
		return "", fmt.Errorf("treasury service returned empty tx_ref")
	}
	return result.TxRef, nil
}
