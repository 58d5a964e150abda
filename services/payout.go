package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wfunc/snakesladders/config"
	"github.com/wfunc/snakesladders/logger"
)

var ErrPayoutStatus = errors.New("payout endpoint returned an error status")

// PayoutClient talks to the arcade backend that pays out and ranks winners.
type PayoutClient struct {
	baseURL   string
	apiSecret string
	token     string
	amount    float64
	http      *http.Client
}

func NewPayoutClient(cfg config.PayoutConfig) *PayoutClient {
	return &PayoutClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiSecret: cfg.APISecret,
		token:     cfg.Token,
		amount:    cfg.Amount,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

type transferRequest struct {
	WalletAddress string  `json:"walletAddress"`
	Token         string  `json:"token"`
	Amount        float64 `json:"amount"`
}

type addressRequest struct {
	Address string `json:"address"`
}

// PayWinner transfers the prize and, only if that succeeded, closes the wallet's game
// and records the win on the leaderboard. Failures of the last two are logged only.
func (c *PayoutClient) PayWinner(ctx context.Context, wallet string) error {
	if err := c.Transfer(ctx, wallet); err != nil {
		return err
	}
	if err := c.SetValidGameFalse(ctx, wallet); err != nil {
		logger.Log.Warnw("setValidGameFalse failed", "wallet", wallet, "error", err)
	}
	if err := c.GameWon(ctx, wallet); err != nil {
		logger.Log.Warnw("gameWon failed", "wallet", wallet, "error", err)
	}
	return nil
}

func (c *PayoutClient) Transfer(ctx context.Context, wallet string) error {
	return c.post(ctx, "/transfer", transferRequest{WalletAddress: wallet, Token: c.token, Amount: c.amount}, true)
}

func (c *PayoutClient) SetValidGameFalse(ctx context.Context, wallet string) error {
	return c.post(ctx, "/user/setValidGameFalse", addressRequest{Address: wallet}, false)
}

func (c *PayoutClient) GameWon(ctx context.Context, wallet string) error {
	return c.post(ctx, "/user/gameWon", addressRequest{Address: wallet}, false)
}

func (c *PayoutClient) post(ctx context.Context, path string, body any, signed bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		req.Header.Set("x-api-secret", c.apiSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %d %s", ErrPayoutStatus, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
