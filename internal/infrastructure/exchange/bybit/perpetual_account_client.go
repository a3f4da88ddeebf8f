package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/service"
)

// codeLeverageNotModified 杠杆未变化
const codeLeverageNotModified = "110043"

// PerpetualAccountClient Bybit 统一账户
type PerpetualAccountClient struct {
	*APIClient
}

// NewPerpetualAccountClient creates perpetual account client
func NewPerpetualAccountClient(client *APIClient) *PerpetualAccountClient {
	return &PerpetualAccountClient{APIClient: client}
}

type walletAccount struct {
	TotalAvailableBalance string `json:"totalAvailableBalance"`
	Coin                  []struct {
		Coin                string `json:"coin"`
		WalletBalance       string `json:"walletBalance"`
		AvailableToWithdraw string `json:"availableToWithdraw"`
	} `json:"coin"`
}

// GetBalance GET /v5/account/wallet-balance，
// 币种级 availableToWithdraw 为空时退回账户级 totalAvailableBalance
func (c *PerpetualAccountClient) GetBalance(ctx context.Context, coin string) (float64, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	params.Set("coin", coin)
	e, err := c.signedQueryRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrBalanceUnavailable, err)
	}
	list, err := listResult[walletAccount](e)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrBalanceUnavailable, err)
	}
	for _, acct := range list {
		for _, cb := range acct.Coin {
			if cb.Coin != coin {
				continue
			}
			raw := cb.AvailableToWithdraw
			if raw == "" {
				raw = acct.TotalAvailableBalance
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: parse %q", service.ErrBalanceUnavailable, raw)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: coin %s not found", service.ErrBalanceUnavailable, coin)
}

// SetLeverage POST /v5/position/set-leverage，多空同杠杆
func (c *PerpetualAccountClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	payload := map[string]string{
		"category":     categoryLinear,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	_, err := c.signedJSONRequest(ctx, http.MethodPost, "/v5/position/set-leverage", payload)
	var ve *service.VenueError
	if errors.As(err, &ve) && ve.Code == codeLeverageNotModified {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("set leverage failed: %w", err)
	}
	log.Info().
		Str("exchange", "BYBIT").
		Str("symbol", symbol).
		Int("leverage", leverage).
		Msg("leverage adjusted")
	return nil
}
