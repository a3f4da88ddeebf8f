package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// PerpetualOrderClient OKX 永续下单
type PerpetualOrderClient struct {
	*APIClient
}

func NewPerpetualOrderClient(client *APIClient) *PerpetualOrderClient {
	return &PerpetualOrderClient{APIClient: client}
}

// PlaceOrder POST /api/v5/trade/order，全仓限价单，数量单位为张
func (c *PerpetualOrderClient) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	payload := map[string]any{
		"instId":  req.Symbol,
		"tdMode":  marginModeCross,
		"side":    strings.ToLower(req.Side.OrderSide()),
		"ordType": "limit",
		"px":      decimal.NewFromFloat(req.Price).String(),
		"sz":      decimal.NewFromFloat(req.Size).String(),
	}
	if req.ReduceOnly {
		payload["reduceOnly"] = true
	}

	ack, err := ackFromData(c.signedJSONRequest(exchange.WithoutNetworkRetry(ctx), http.MethodPost, "/api/v5/trade/order", payload))
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}

	log.Info().
		Str("exchange", "OKX").
		Str("symbol", req.Symbol).
		Str("side", req.Side.OrderSide()).
		Float64("quantity", req.Size).
		Float64("price", req.Price).
		Str("orderID", ack.OrdID).
		Msg("order placed")
	return ack.OrdID, nil
}

// CancelOrder POST /api/v5/trade/cancel-order
func (c *PerpetualOrderClient) CancelOrder(ctx context.Context, instID, orderID string) error {
	payload := map[string]string{"instId": instID, "ordId": orderID}
	if _, err := ackFromData(c.signedJSONRequest(ctx, http.MethodPost, "/api/v5/trade/cancel-order", payload)); err != nil {
		return fmt.Errorf("cancel order failed: %w", err)
	}
	log.Info().Str("exchange", "OKX").Str("symbol", instID).Str("orderID", orderID).Msg("order cancelled")
	return nil
}

type orderDetail struct {
	OrdID     string `json:"ordId"`
	State     string `json:"state"`
	Sz        string `json:"sz"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
}

// GetOrderStatus GET /api/v5/trade/order
func (c *PerpetualOrderClient) GetOrderStatus(ctx context.Context, instID, orderID string) (model.OrderFill, error) {
	params := url.Values{}
	params.Set("instId", instID)
	params.Set("ordId", orderID)
	data, err := c.signedQueryRequest(ctx, http.MethodGet, "/api/v5/trade/order", params)
	if err != nil {
		return model.OrderFill{}, fmt.Errorf("get order status failed: %w", err)
	}

	var list []orderDetail
	if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
		return model.OrderFill{}, fmt.Errorf("okx: order %s not found", orderID)
	}
	o := list[0]
	sz, _ := strconv.ParseFloat(o.Sz, 64)
	filled, _ := strconv.ParseFloat(o.AccFillSz, 64)
	avg, _ := strconv.ParseFloat(o.AvgPx, 64)
	return model.OrderFill{
		OrderID:       orderID,
		Status:        mapOrderState(o.State),
		RequestedSize: sz,
		FilledSize:    filled,
		AvgPrice:      avg,
	}, nil
}

// mapOrderState live / partially_filled / filled / canceled / mmp_canceled
func mapOrderState(s string) model.OrderStatus {
	switch s {
	case "filled":
		return model.OrderFilled
	case "partially_filled":
		return model.OrderPartiallyFilled
	case "canceled", "mmp_canceled":
		return model.OrderCancelled
	default:
		return model.OrderPending
	}
}
