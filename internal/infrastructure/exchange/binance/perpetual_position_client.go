package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"fundarb/internal/domain/model"
)

// PerpetualPositionClient Binance perpetual position client
type PerpetualPositionClient struct {
	*APIClient
}

// NewPerpetualPositionClient creates perpetual position client
func NewPerpetualPositionClient(client *APIClient) *PerpetualPositionClient {
	return &PerpetualPositionClient{APIClient: client}
}

// PositionRisk /fapi/v3/positionRisk
type PositionRisk struct {
	Symbol       string `json:"symbol"`
	PositionSide string `json:"positionSide"`
	PositionAmt  string `json:"positionAmt"`
	EntryPrice   string `json:"entryPrice"`
}

// GetPosition 单向持仓模式下的持仓，positionAmt 带符号
func (c *PerpetualPositionClient) GetPosition(ctx context.Context, symbol string) (model.PositionInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v3/positionRisk", params)
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("get position failed: %w", err)
	}

	var list []PositionRisk
	if err := json.Unmarshal(body, &list); err != nil {
		return model.PositionInfo{}, fmt.Errorf("parse position failed: %w", err)
	}

	info := model.PositionInfo{Symbol: symbol}
	for _, p := range list {
		if p.Symbol != symbol {
			continue
		}
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		info.SignedSize = amt
		info.EntryPrice, _ = strconv.ParseFloat(p.EntryPrice, 64)
		break
	}
	return info, nil
}
