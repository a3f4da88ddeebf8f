package bybit

import (
	"context"
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

// ServerTime GET /v5/market/time，取响应顶层的 time (ms)
func (c *MarketClient) ServerTime(ctx context.Context) (int64, error) {
	e, err := c.publicRequest(ctx, "/v5/market/time", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrClockUnavailable, err)
	}
	if e.Time == 0 {
		return 0, fmt.Errorf("%w: bad response", service.ErrClockUnavailable)
	}
	return e.Time, nil
}

type instrumentInfo struct {
	Symbol        string `json:"symbol"`
	LotSizeFilter struct {
		QtyStep string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LeverageFilter struct {
		MaxLeverage string `json:"maxLeverage"`
	} `json:"leverageFilter"`
}

// InstrumentSpec GET /v5/market/instruments-info
func (c *MarketClient) InstrumentSpec(ctx context.Context, symbol string) (model.InstrumentSpec, error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)
	e, err := c.publicRequest(ctx, "/v5/market/instruments-info", params)
	if err != nil {
		return model.InstrumentSpec{}, fmt.Errorf("get instruments info failed: %w", err)
	}
	list, err := listResult[instrumentInfo](e)
	if err != nil {
		return model.InstrumentSpec{}, err
	}
	for _, in := range list {
		if in.Symbol != symbol {
			continue
		}
		prec := service.PrecisionFromStep(in.LotSizeFilter.QtyStep)
		if prec < 0 {
			prec = 0
		}
		tick, _ := strconv.ParseFloat(in.PriceFilter.TickSize, 64)
		lev, _ := strconv.ParseFloat(in.LeverageFilter.MaxLeverage, 64)
		return model.InstrumentSpec{
			Symbol:            symbol,
			QuantityPrecision: prec,
			ContractSize:      1,
			TickSize:          tick,
			MaxLeverage:       int(lev),
		}, nil
	}
	return model.InstrumentSpec{}, fmt.Errorf("bybit: symbol %s not found", symbol)
}

type tickerInfo struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// FundingRate GET /v5/market/tickers
func (c *MarketClient) FundingRate(ctx context.Context, symbol string) (rate float64, next int64, err error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)
	e, err := c.publicRequest(ctx, "/v5/market/tickers", params)
	if err != nil {
		return 0, 0, fmt.Errorf("get tickers failed: %w", err)
	}
	list, err := listResult[tickerInfo](e)
	if err != nil {
		return 0, 0, err
	}
	if len(list) == 0 {
		return 0, 0, fmt.Errorf("bybit: no ticker for %s", symbol)
	}
	rate, err = strconv.ParseFloat(list[0].FundingRate, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse funding rate %q: %w", list[0].FundingRate, err)
	}
	next, err = strconv.ParseInt(list[0].NextFundingTime, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse next funding time %q: %w", list[0].NextFundingTime, err)
	}
	return rate, next, nil
}
