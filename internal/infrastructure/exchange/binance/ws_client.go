package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// TickerClient WebSocket API 单次请求取盘口
type TickerClient struct {
	ws exchange.WSHelper
}

// NewTickerClient wsURL 例如 wss://ws-fapi.binance.com/ws-fapi/v1
func NewTickerClient(wsURL string) *TickerClient {
	return &TickerClient{ws: exchange.WSHelper{URL: strings.TrimSpace(wsURL)}}
}

type wsRequest struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Params map[string]string `json:"params"`
}

type wsBookResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Result *struct {
		Symbol   string `json:"symbol"`
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
		Time     int64  `json:"time"`
	} `json:"result"`
	Error *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

// BookTicker ticker.book
func (c *TickerClient) BookTicker(ctx context.Context, symbol string) (model.VenueQuote, error) {
	req := wsRequest{
		ID:     uuid.NewString(),
		Method: "ticker.book",
		Params: map[string]string{"symbol": symbol},
	}
	return c.ws.SampleOnce(ctx, req, func(msg []byte) (model.VenueQuote, bool, error) {
		return parseBookResponse(req.ID, msg)
	})
}

func parseBookResponse(id string, msg []byte) (model.VenueQuote, bool, error) {
	var resp wsBookResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return model.VenueQuote{}, false, fmt.Errorf("binance ws: %w", err)
	}
	if resp.ID != id {
		return model.VenueQuote{}, false, nil
	}
	if resp.Status != 200 || resp.Result == nil {
		code, text := "", string(msg)
		if resp.Error != nil {
			code, text = strconv.Itoa(resp.Error.Code), resp.Error.Msg
		}
		return model.VenueQuote{}, false, service.NewVenueError("BINANCE", resp.Status, code, text)
	}
	bid, _ := strconv.ParseFloat(resp.Result.BidPrice, 64)
	ask, _ := strconv.ParseFloat(resp.Result.AskPrice, 64)
	return model.VenueQuote{
		Venue:  model.VenueBinance,
		Symbol: resp.Result.Symbol,
		Bid:    bid,
		Ask:    ask,
		Last:   (bid + ask) / 2,
		Ts:     resp.Result.Time,
	}, true, nil
}
