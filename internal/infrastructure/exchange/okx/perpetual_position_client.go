package okx

import (
	"context"
	"encoding/json"
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

type positionData struct {
	InstID  string `json:"instId"`
	PosSide string `json:"posSide"` // net / long / short
	Pos     string `json:"pos"`     // 张数，net 模式下带符号
	AvgPx   string `json:"avgPx"`
}

// GetPosition GET /api/v5/account/positions，没有持仓时返回零值
func (c *PerpetualPositionClient) GetPosition(ctx context.Context, instID string) (model.PositionInfo, error) {
	params := url.Values{}
	params.Set("instType", instTypeSwap)
	params.Set("instId", instID)
	data, err := c.signedQueryRequest(ctx, http.MethodGet, "/api/v5/account/positions", params)
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("get position failed: %w", err)
	}

	var list []positionData
	if err := json.Unmarshal(data, &list); err != nil {
		return model.PositionInfo{}, fmt.Errorf("parse positions failed: %w", err)
	}

	info := model.PositionInfo{Symbol: instID}
	for _, p := range list {
		if p.InstID != instID {
			continue
		}
		size, _ := strconv.ParseFloat(p.Pos, 64)
		if size == 0 {
			continue
		}
		if p.PosSide == "short" && size > 0 {
			size = -size
		}
		info.SignedSize = size
		info.EntryPrice, _ = strconv.ParseFloat(p.AvgPx, 64)
		break
	}
	return info, nil
}
