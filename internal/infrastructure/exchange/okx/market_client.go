package okx

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

// ServerTime GET /api/v5/public/time
func (c *MarketClient) ServerTime(ctx context.Context) (int64, error) {
	data, err := c.publicRequest(ctx, "/api/v5/public/time", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrClockUnavailable, err)
	}
	var resp []struct {
		Ts string `json:"ts"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || len(resp) == 0 {
		return 0, fmt.Errorf("%w: bad response", service.ErrClockUnavailable)
	}
	ts, err := strconv.ParseInt(resp[0].Ts, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrClockUnavailable, err)
	}
	return ts, nil
}

// instrument /api/v5/public/instruments
type instrument struct {
	InstID string `json:"instId"`
	LotSz  string `json:"lotSz"`
	TickSz string `json:"tickSz"`
	CtVal  string `json:"ctVal"`
	CtMult string `json:"ctMult"`
	Lever  string `json:"lever"`
}

// InstrumentSpec 数量单位为张，ContractSize = ctVal × ctMult
func (c *MarketClient) InstrumentSpec(ctx context.Context, instID string) (model.InstrumentSpec, error) {
	params := url.Values{}
	params.Set("instType", instTypeSwap)
	params.Set("instId", instID)
	data, err := c.publicRequest(ctx, "/api/v5/public/instruments", params)
	if err != nil {
		return model.InstrumentSpec{}, fmt.Errorf("get instruments failed: %w", err)
	}
	var list []instrument
	if err := json.Unmarshal(data, &list); err != nil {
		return model.InstrumentSpec{}, fmt.Errorf("parse instruments failed: %w", err)
	}
	for _, in := range list {
		if in.InstID != instID {
			continue
		}
		ctVal, _ := strconv.ParseFloat(in.CtVal, 64)
		ctMult, _ := strconv.ParseFloat(in.CtMult, 64)
		if ctMult == 0 {
			ctMult = 1
		}
		tick, _ := strconv.ParseFloat(in.TickSz, 64)
		lever, _ := strconv.ParseFloat(in.Lever, 64)
		prec := service.PrecisionFromStep(in.LotSz)
		if prec < 0 {
			prec = 0
		}
		return model.InstrumentSpec{
			Symbol:            instID,
			QuantityPrecision: prec,
			ContractSize:      ctVal * ctMult,
			TickSize:          tick,
			MaxLeverage:       int(lever),
		}, nil
	}
	return model.InstrumentSpec{}, fmt.Errorf("okx: instrument %s not found", instID)
}

// FundingRate GET /api/v5/public/funding-rate，fundingTime 为即将结算的时间
func (c *MarketClient) FundingRate(ctx context.Context, instID string) (rate float64, next int64, err error) {
	params := url.Values{}
	params.Set("instId", instID)
	data, err := c.publicRequest(ctx, "/api/v5/public/funding-rate", params)
	if err != nil {
		return 0, 0, fmt.Errorf("get funding rate failed: %w", err)
	}
	var resp []struct {
		InstID      string `json:"instId"`
		FundingRate string `json:"fundingRate"`
		FundingTime string `json:"fundingTime"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || len(resp) == 0 {
		return 0, 0, fmt.Errorf("okx: empty funding rate for %s", instID)
	}
	rate, err = strconv.ParseFloat(resp[0].FundingRate, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse funding rate %q: %w", resp[0].FundingRate, err)
	}
	next, err = strconv.ParseInt(resp[0].FundingTime, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse funding time %q: %w", resp[0].FundingTime, err)
	}
	return rate, next, nil
}
