package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// TickerClient 订阅 tickers.<symbol>，取首条快照
type TickerClient struct {
	ws exchange.WSHelper
}

// NewTickerClient wsURL 例如 wss://stream.bybit.com/v5/public/linear
func NewTickerClient(wsURL string) *TickerClient {
	return &TickerClient{ws: exchange.WSHelper{URL: strings.TrimSpace(wsURL)}}
}

type bybitSubReq struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type bybitTickerMsg struct {
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Data    *struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
		Bid1Price string `json:"bid1Price"`
		Ask1Price string `json:"ask1Price"`
	} `json:"data"`
}

// Ticker 单次取价
func (c *TickerClient) Ticker(ctx context.Context, symbol string) (model.VenueQuote, error) {
	sub := bybitSubReq{Op: "subscribe", Args: []string{"tickers." + symbol}}
	return c.ws.SampleOnce(ctx, sub, parseTicker)
}

func parseTicker(b []byte) (model.VenueQuote, bool, error) {
	var msg bybitTickerMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return model.VenueQuote{}, false, fmt.Errorf("bybit ws: %w", err)
	}
	if msg.Success != nil && !*msg.Success {
		return model.VenueQuote{}, false, service.NewVenueError("BYBIT", 0, "", msg.RetMsg)
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") || msg.Data == nil {
		return model.VenueQuote{}, false, nil
	}

	bid, _ := strconv.ParseFloat(msg.Data.Bid1Price, 64)
	ask, _ := strconv.ParseFloat(msg.Data.Ask1Price, 64)
	last, _ := strconv.ParseFloat(msg.Data.LastPrice, 64)
	// delta 推送可能只带变化字段
	if bid == 0 && ask == 0 && last == 0 {
		return model.VenueQuote{}, false, nil
	}
	return model.VenueQuote{
		Venue:  model.VenueBybit,
		Symbol: msg.Data.Symbol,
		Bid:    bid,
		Ask:    ask,
		Last:   last,
		Ts:     msg.Ts,
	}, true, nil
}
