package okx

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

// TickerClient 订阅 tickers 频道，取到第一条推送后断开
type TickerClient struct {
	ws exchange.WSHelper
}

// NewTickerClient wsURL 例如 wss://ws.okx.com:8443/ws/v5/public
func NewTickerClient(wsURL string) *TickerClient {
	return &TickerClient{ws: exchange.WSHelper{URL: strings.TrimSpace(wsURL)}}
}

type okxSubReq struct {
	Op   string      `json:"op"`
	Args []okxSubArg `json:"args"`
}

type okxSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxTickerMsg struct {
	Event string          `json:"event"`
	Code  string          `json:"code"`
	Msg   string          `json:"msg"`
	Arg   okxSubArg       `json:"arg"`
	Data  []okxTickerData `json:"data"`
}

type okxTickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Ts     string `json:"ts"`
}

// Ticker 单次取价
func (c *TickerClient) Ticker(ctx context.Context, instID string) (model.VenueQuote, error) {
	sub := okxSubReq{Op: "subscribe", Args: []okxSubArg{{Channel: "tickers", InstID: instID}}}
	return c.ws.SampleOnce(ctx, sub, parseTicker)
}

func parseTicker(b []byte) (model.VenueQuote, bool, error) {
	if string(b) == "pong" {
		return model.VenueQuote{}, false, nil
	}
	var msg okxTickerMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return model.VenueQuote{}, false, fmt.Errorf("okx ws: %w", err)
	}
	if msg.Event == "error" {
		return model.VenueQuote{}, false, service.NewVenueError("OKX", 0, msg.Code, msg.Msg)
	}
	if len(msg.Data) == 0 {
		return model.VenueQuote{}, false, nil
	}

	d := msg.Data[0]
	bid, _ := strconv.ParseFloat(d.BidPx, 64)
	ask, _ := strconv.ParseFloat(d.AskPx, 64)
	last, _ := strconv.ParseFloat(d.Last, 64)
	ts, _ := strconv.ParseInt(d.Ts, 10, 64)
	return model.VenueQuote{
		Venue:  model.VenueOKX,
		Symbol: d.InstID,
		Bid:    bid,
		Ask:    ask,
		Last:   last,
		Ts:     ts,
	}, true, nil
}
