package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// PerpetualOrderClient Binance perpetual REST client
type PerpetualOrderClient struct {
	*APIClient
}

// NewPerpetualOrderClient creates perpetual order client
func NewPerpetualOrderClient(client *APIClient) *PerpetualOrderClient {
	return &PerpetualOrderClient{APIClient: client}
}

// OrderResponse 订单响应
type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	Price         string `json:"price"`
	UpdateTime    int64  `json:"updateTime"`
}

// PlaceOrder 限价 GTC 下单
func (c *PerpetualOrderClient) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side.OrderSide())
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC") // Good Till Cancel
	params.Set("quantity", decimal.NewFromFloat(req.Size).String())
	params.Set("price", decimal.NewFromFloat(req.Price).String())
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	body, err := c.signedRequest(exchange.WithoutNetworkRetry(ctx), http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse order response failed: %w", err)
	}
	if resp.OrderID == 0 {
		return "", fmt.Errorf("order failed: %s", string(body))
	}

	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", req.Symbol).
		Str("side", req.Side.OrderSide()).
		Float64("quantity", req.Size).
		Float64("price", req.Price).
		Int64("orderID", resp.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	return strconv.FormatInt(resp.OrderID, 10), nil
}

// CancelOrder 撤销订单
func (c *PerpetualOrderClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	body, err := c.signedRequest(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return fmt.Errorf("cancel order failed: %w", err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse cancel response failed: %w", err)
	}

	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", symbol).
		Str("orderID", orderID).
		Str("status", resp.Status).
		Msg("order cancelled")
	return nil
}

// GetOrderStatus GET /fapi/v1/order
func (c *PerpetualOrderClient) GetOrderStatus(ctx context.Context, symbol, orderID string) (model.OrderFill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/order", params)
	if err != nil {
		return model.OrderFill{}, fmt.Errorf("get order status failed: %w", err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.OrderFill{}, fmt.Errorf("parse order status failed: %w", err)
	}

	orig, _ := strconv.ParseFloat(resp.OrigQty, 64)
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)

	return model.OrderFill{
		OrderID:       orderID,
		Status:        mapOrderStatus(resp.Status),
		RequestedSize: orig,
		FilledSize:    executed,
		AvgPrice:      avg,
	}, nil
}

// mapOrderStatus NEW / PARTIALLY_FILLED / FILLED / CANCELED / EXPIRED / REJECTED
func mapOrderStatus(s string) model.OrderStatus {
	switch s {
	case "FILLED":
		return model.OrderFilled
	case "PARTIALLY_FILLED":
		return model.OrderPartiallyFilled
	case "CANCELED", "EXPIRED", "EXPIRED_IN_MATCH":
		return model.OrderCancelled
	case "REJECTED":
		return model.OrderFailed
	default:
		return model.OrderPending
	}
}
