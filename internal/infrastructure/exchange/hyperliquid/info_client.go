package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sonirico/go-hyperliquid"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/ratelimit"
)

// InfoClient POST /info 的原始查询，SDK 没有覆盖的接口走这里
type InfoClient struct {
	rest *exchange.RestClient
}

// NewInfoClient 创建 /info 客户端
func NewInfoClient(baseURL string, limiter *ratelimit.Window) *InfoClient {
	return &InfoClient{rest: exchange.NewRestClient(model.VenueHyperliquid, baseURL, limiter)}
}

func (c *InfoClient) post(ctx context.Context, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	op := fmt.Sprintf("POST /info %v", payload["type"])
	raw, err := c.rest.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		endpoint, err := exchange.BuildQueryURL(c.rest.BaseURL, "/info", "")
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	return exchange.ParseJSON(raw, out)
}

// Meta 永续合约列表，只解析 universe
func (c *InfoClient) Meta(ctx context.Context) (*hyperliquid.Meta, error) {
	var resp struct {
		Universe []hyperliquid.AssetInfo `json:"universe"`
	}
	if err := c.post(ctx, map[string]any{"type": "meta"}, &resp); err != nil {
		return nil, fmt.Errorf("hyperliquid meta: %w", err)
	}
	return &hyperliquid.Meta{Universe: resp.Universe}, nil
}

type l2Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type l2Book struct {
	Coin   string      `json:"coin"`
	Time   int64       `json:"time"`
	Levels [][]l2Level `json:"levels"`
}

// L2Book 买一卖一，levels[0] 为买盘，levels[1] 为卖盘
func (c *InfoClient) L2Book(ctx context.Context, coin string) (model.VenueQuote, error) {
	var book l2Book
	if err := c.post(ctx, map[string]any{"type": "l2Book", "coin": coin}, &book); err != nil {
		return model.VenueQuote{}, fmt.Errorf("get l2 book failed: %w", err)
	}
	q := model.VenueQuote{Venue: model.VenueHyperliquid, Symbol: coin, Ts: book.Time}
	if len(book.Levels) > 0 && len(book.Levels[0]) > 0 {
		q.Bid, _ = strconv.ParseFloat(book.Levels[0][0].Px, 64)
	}
	if len(book.Levels) > 1 && len(book.Levels[1]) > 0 {
		q.Ask, _ = strconv.ParseFloat(book.Levels[1][0].Px, 64)
	}
	if q.Bid == 0 && q.Ask == 0 {
		return q, fmt.Errorf("hyperliquid: empty book for %s", coin)
	}
	switch {
	case q.Bid > 0 && q.Ask > 0:
		q.Last = (q.Bid + q.Ask) / 2
	case q.Bid > 0:
		q.Last = q.Bid
	default:
		q.Last = q.Ask
	}
	return q, nil
}

// ServerTime 取 l2Book 响应中的 time
func (c *InfoClient) ServerTime(ctx context.Context) (int64, error) {
	var book l2Book
	if err := c.post(ctx, map[string]any{"type": "l2Book", "coin": "BTC"}, &book); err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrClockUnavailable, err)
	}
	if book.Time == 0 {
		return 0, fmt.Errorf("%w: no time in l2Book", service.ErrClockUnavailable)
	}
	return book.Time, nil
}

type clearinghouseState struct {
	Withdrawable   string `json:"withdrawable"`
	AssetPositions []struct {
		Position struct {
			Coin    string `json:"coin"`
			Szi     string `json:"szi"`
			EntryPx string `json:"entryPx"`
		} `json:"position"`
	} `json:"assetPositions"`
}

func (c *InfoClient) clearinghouse(ctx context.Context, user string) (clearinghouseState, error) {
	var st clearinghouseState
	err := c.post(ctx, map[string]any{"type": "clearinghouseState", "user": user}, &st)
	return st, err
}

// Withdrawable 可用保证金 (USDC)
func (c *InfoClient) Withdrawable(ctx context.Context, user string) (float64, error) {
	st, err := c.clearinghouse(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrBalanceUnavailable, err)
	}
	v, err := strconv.ParseFloat(st.Withdrawable, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q", service.ErrBalanceUnavailable, st.Withdrawable)
	}
	return v, nil
}

// Position szi 带符号
func (c *InfoClient) Position(ctx context.Context, user, coin string) (model.PositionInfo, error) {
	st, err := c.clearinghouse(ctx, user)
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("get position failed: %w", err)
	}
	info := model.PositionInfo{Symbol: coin}
	for _, ap := range st.AssetPositions {
		if ap.Position.Coin != coin {
			continue
		}
		info.SignedSize, _ = strconv.ParseFloat(ap.Position.Szi, 64)
		info.EntryPrice, _ = strconv.ParseFloat(ap.Position.EntryPx, 64)
		break
	}
	return info, nil
}

type orderStatusResponse struct {
	Status string `json:"status"` // order / unknownOid
	Order  *struct {
		Order struct {
			Coin    string `json:"coin"`
			LimitPx string `json:"limitPx"`
			Sz      string `json:"sz"` // 剩余未成交
			OrigSz  string `json:"origSz"`
			Oid     int64  `json:"oid"`
		} `json:"order"`
		Status string `json:"status"` // open / filled / canceled / rejected / marginCanceled ...
	} `json:"order"`
}

// OrderStatus orderStatus 不返回成交均价，用限价近似；成交后以持仓为准
func (c *InfoClient) OrderStatus(ctx context.Context, user string, oid int64) (model.OrderFill, error) {
	var resp orderStatusResponse
	if err := c.post(ctx, map[string]any{"type": "orderStatus", "user": user, "oid": oid}, &resp); err != nil {
		return model.OrderFill{}, fmt.Errorf("get order status failed: %w", err)
	}
	if resp.Status != "order" || resp.Order == nil {
		return model.OrderFill{}, fmt.Errorf("hyperliquid: order %d: %s", oid, resp.Status)
	}

	o := resp.Order.Order
	orig, _ := strconv.ParseFloat(o.OrigSz, 64)
	remaining, _ := strconv.ParseFloat(o.Sz, 64)
	px, _ := strconv.ParseFloat(o.LimitPx, 64)
	fill := model.OrderFill{
		OrderID:       strconv.FormatInt(oid, 10),
		Status:        mapOrderStatus(resp.Order.Status, orig, remaining),
		RequestedSize: orig,
		FilledSize:    orig - remaining,
	}
	if fill.FilledSize < 0 {
		fill.FilledSize = 0
	}
	if fill.FilledSize > 0 {
		fill.AvgPrice = px
	}
	return fill, nil
}

func mapOrderStatus(s string, orig, remaining float64) model.OrderStatus {
	switch s {
	case "filled":
		return model.OrderFilled
	case "open", "triggered":
		if remaining < orig {
			return model.OrderPartiallyFilled
		}
		return model.OrderPending
	case "rejected":
		return model.OrderFailed
	default:
		// canceled / marginCanceled / reduceOnlyCanceled ...
		return model.OrderCancelled
	}
}

// PredictedFunding 一条预测资金费率
type PredictedFunding struct {
	Coin            string
	Venue           string // BinPerp / HlPerp / BybitPerp
	Rate            float64
	NextFundingTime int64
}

// PredictedFundings [[coin, [[venue, {fundingRate, nextFundingTime}], ...]], ...]，
// 没有数据的交易所条目为 null
func (c *InfoClient) PredictedFundings(ctx context.Context) ([]PredictedFunding, error) {
	var raw [][]json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "predictedFundings"}, &raw); err != nil {
		return nil, fmt.Errorf("get predicted fundings failed: %w", err)
	}
	return parsePredictedFundings(raw)
}

func parsePredictedFundings(raw [][]json.RawMessage) ([]PredictedFunding, error) {
	var out []PredictedFunding
	for _, entry := range raw {
		if len(entry) != 2 {
			continue
		}
		var coin string
		if err := json.Unmarshal(entry[0], &coin); err != nil {
			return nil, fmt.Errorf("hyperliquid: predicted fundings coin: %w", err)
		}
		var venues [][]json.RawMessage
		if err := json.Unmarshal(entry[1], &venues); err != nil {
			return nil, fmt.Errorf("hyperliquid: predicted fundings %s: %w", coin, err)
		}
		for _, v := range venues {
			if len(v) != 2 || string(v[1]) == "null" {
				continue
			}
			var name string
			var data struct {
				FundingRate     string `json:"fundingRate"`
				NextFundingTime int64  `json:"nextFundingTime"`
			}
			if json.Unmarshal(v[0], &name) != nil || json.Unmarshal(v[1], &data) != nil {
				continue
			}
			rate, err := strconv.ParseFloat(data.FundingRate, 64)
			if err != nil {
				continue
			}
			out = append(out, PredictedFunding{
				Coin:            coin,
				Venue:           name,
				Rate:            rate,
				NextFundingTime: data.NextFundingTime,
			})
		}
	}
	return out, nil
}
