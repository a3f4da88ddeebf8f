package binance

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

// PerpetualAccountClient Binance perpetual account query client
type PerpetualAccountClient struct {
	*APIClient
}

// NewPerpetualAccountClient creates perpetual account client
func NewPerpetualAccountClient(client *APIClient) *PerpetualAccountClient {
	return &PerpetualAccountClient{APIClient: client}
}

// AccountResponse 账户响应
type AccountResponse struct {
	TotalWalletBalance string  `json:"totalWalletBalance"`
	TotalMaintMargin   string  `json:"totalMaintMargin"`
	AvailableBalance   string  `json:"availableBalance"`
	Assets             []Asset `json:"assets"`
}

// Asset 资产信息
type Asset struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	AvailableBalance string `json:"availableBalance"`
}

// GetBalance 指定币种的可用保证金
func (c *PerpetualAccountClient) GetBalance(ctx context.Context, asset string) (float64, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/account", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrBalanceUnavailable, err)
	}

	var resp AccountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to unmarshal binance perpetual account: %w", err)
	}

	for _, a := range resp.Assets {
		if a.Asset == asset {
			avail, err := strconv.ParseFloat(a.AvailableBalance, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: parse %q", service.ErrBalanceUnavailable, a.AvailableBalance)
			}
			return avail, nil
		}
	}
	return 0, fmt.Errorf("%w: asset %s not found", service.ErrBalanceUnavailable, asset)
}

// SetLeverage POST /fapi/v1/leverage
func (c *PerpetualAccountClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	if _, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("set leverage failed: %w", err)
	}
	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", symbol).
		Int("leverage", leverage).
		Msg("leverage adjusted")
	return nil
}

type leverageBracket struct {
	Symbol   string `json:"symbol"`
	Brackets []struct {
		InitialLeverage int `json:"initialLeverage"`
	} `json:"brackets"`
}

// MaxLeverage GET /fapi/v1/leverageBracket，第一档的 initialLeverage 即最大杠杆
func (c *PerpetualAccountClient) MaxLeverage(ctx context.Context, symbol string) (int, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/leverageBracket", params)
	if err != nil {
		return 0, fmt.Errorf("get leverage bracket failed: %w", err)
	}

	var list []leverageBracket
	if err := json.Unmarshal(body, &list); err != nil {
		// 单个 symbol 时部分环境返回对象
		var one leverageBracket
		if err2 := json.Unmarshal(body, &one); err2 != nil {
			return 0, fmt.Errorf("parse leverage bracket failed: %w", err)
		}
		list = []leverageBracket{one}
	}
	for _, b := range list {
		if b.Symbol == symbol && len(b.Brackets) > 0 {
			return b.Brackets[0].InitialLeverage, nil
		}
	}
	return 0, fmt.Errorf("binance: no leverage bracket for %s", symbol)
}
