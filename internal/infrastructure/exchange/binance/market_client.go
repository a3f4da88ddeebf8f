package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
)

// MarketClient 公共行情接口
type MarketClient struct {
	*APIClient
}

// NewMarketClient 创建行情客户端
func NewMarketClient(client *APIClient) *MarketClient {
	return &MarketClient{APIClient: client}
}

// ServerTime GET /fapi/v1/time
func (c *MarketClient) ServerTime(ctx context.Context) (int64, error) {
	body, err := c.publicRequest(ctx, "/fapi/v1/time", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrClockUnavailable, err)
	}
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ServerTime == 0 {
		return 0, fmt.Errorf("%w: bad response %s", service.ErrClockUnavailable, string(body))
	}
	return resp.ServerTime, nil
}

// ExchangeInfoResponse /fapi/v1/exchangeInfo
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo 合约信息
type SymbolInfo struct {
	Symbol            string         `json:"symbol"`
	Status            string         `json:"status"`
	QuantityPrecision int            `json:"quantityPrecision"`
	PricePrecision    int            `json:"pricePrecision"`
	Filters           []SymbolFilter `json:"filters"`
}

// SymbolFilter LOT_SIZE / PRICE_FILTER
type SymbolFilter struct {
	FilterType string `json:"filterType"`
	StepSize   string `json:"stepSize"`
	TickSize   string `json:"tickSize"`
}

// InstrumentSpec 数量精度取 LOT_SIZE.stepSize，缺失时用 quantityPrecision
func (c *MarketClient) InstrumentSpec(ctx context.Context, symbol string) (model.InstrumentSpec, error) {
	body, err := c.publicRequest(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return model.InstrumentSpec{}, fmt.Errorf("get exchange info failed: %w", err)
	}
	var resp ExchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.InstrumentSpec{}, fmt.Errorf("parse exchange info failed: %w", err)
	}
	for _, s := range resp.Symbols {
		if s.Symbol != symbol {
			continue
		}
		spec := model.InstrumentSpec{
			Symbol:            symbol,
			QuantityPrecision: s.QuantityPrecision,
			ContractSize:      1,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				if p := service.PrecisionFromStep(f.StepSize); p >= 0 {
					spec.QuantityPrecision = p
				}
			case "PRICE_FILTER":
				spec.TickSize, _ = strconv.ParseFloat(f.TickSize, 64)
			}
		}
		return spec, nil
	}
	return model.InstrumentSpec{}, fmt.Errorf("binance: symbol %s not found", symbol)
}

// PremiumIndex /fapi/v1/premiumIndex
type PremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// FundingRate 当前周期的资金费率与下次结算时间
func (c *MarketClient) FundingRate(ctx context.Context, symbol string) (rate float64, next int64, err error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.publicRequest(ctx, "/fapi/v1/premiumIndex", params)
	if err != nil {
		return 0, 0, fmt.Errorf("get premium index failed: %w", err)
	}
	var resp PremiumIndex
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, fmt.Errorf("parse premium index failed: %w", err)
	}
	rate, err = strconv.ParseFloat(resp.LastFundingRate, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse funding rate %q: %w", resp.LastFundingRate, err)
	}
	return rate, resp.NextFundingTime, nil
}
