package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"fundarb/internal/domain/model"
)

// PerpetualPositionClient 持仓查询
type PerpetualPositionClient struct {
	*APIClient
}

func NewPerpetualPositionClient(client *APIClient) *PerpetualPositionClient {
	return &PerpetualPositionClient{APIClient: client}
}

type positionItem struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"` // Buy / Sell / 空字符串表示无持仓
	Size     string `json:"size"`
	AvgPrice string `json:"avgPrice"`
}

// GetPosition GET /v5/position/list（单向持仓模式）
func (c *PerpetualPositionClient) GetPosition(ctx context.Context, symbol string) (model.PositionInfo, error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)
	e, err := c.signedQueryRequest(ctx, http.MethodGet, "/v5/position/list", params)
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("get position failed: %w", err)
	}
	list, err := listResult[positionItem](e)
	if err != nil {
		return model.PositionInfo{}, err
	}

	info := model.PositionInfo{Symbol: symbol}
	for _, p := range list {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if p.Symbol != symbol || size == 0 {
			continue
		}
		if p.Side == "Sell" {
			size = -size
		}
		info.SignedSize = size
		info.EntryPrice, _ = strconv.ParseFloat(p.AvgPrice, 64)
		break
	}
	return info, nil
}
