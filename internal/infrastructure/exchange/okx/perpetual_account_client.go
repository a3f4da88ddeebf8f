package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/service"
)

// PerpetualAccountClient OKX perpetual account query client
type PerpetualAccountClient struct {
	*APIClient
}

// NewPerpetualAccountClient creates perpetual account client
func NewPerpetualAccountClient(client *APIClient) *PerpetualAccountClient {
	return &PerpetualAccountClient{APIClient: client}
}

// balanceData OKX /api/v5/account/balance
type balanceData struct {
	TotalEq string `json:"totalEq"`
	Details []struct {
		Ccy      string `json:"ccy"`      // 币种（通常是 USDT）
		AvailBal string `json:"availBal"` // 可用余额
		AvailEq  string `json:"availEq"`  // 可用权益（保证金账户）
		Eq       string `json:"eq"`
	} `json:"details"`
}

// GetBalance 指定币种可用保证金，优先 availEq
func (c *PerpetualAccountClient) GetBalance(ctx context.Context, ccy string) (float64, error) {
	params := url.Values{}
	params.Set("ccy", ccy)
	data, err := c.signedQueryRequest(ctx, http.MethodGet, "/api/v5/account/balance", params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrBalanceUnavailable, err)
	}

	var resp []balanceData
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to unmarshal okx balance: %w", err)
	}
	for _, acct := range resp {
		for _, d := range acct.Details {
			if d.Ccy != ccy {
				continue
			}
			raw := d.AvailEq
			if raw == "" {
				raw = d.AvailBal
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: parse %q", service.ErrBalanceUnavailable, raw)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: currency %s not found", service.ErrBalanceUnavailable, ccy)
}

// SetLeverage POST /api/v5/account/set-leverage（全仓）
func (c *PerpetualAccountClient) SetLeverage(ctx context.Context, instID string, leverage int) error {
	payload := map[string]string{
		"instId":  instID,
		"lever":   strconv.Itoa(leverage),
		"mgnMode": marginModeCross,
	}
	if _, err := c.signedJSONRequest(ctx, http.MethodPost, "/api/v5/account/set-leverage", payload); err != nil {
		return fmt.Errorf("set leverage failed: %w", err)
	}
	log.Info().
		Str("exchange", "OKX").
		Str("symbol", instID).
		Int("leverage", leverage).
		Msg("leverage adjusted")
	return nil
}
