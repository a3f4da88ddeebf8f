package bybit

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

// PerpetualOrderClient Bybit linear 下单
type PerpetualOrderClient struct {
	*APIClient
}

func NewPerpetualOrderClient(client *APIClient) *PerpetualOrderClient {
	return &PerpetualOrderClient{APIClient: client}
}

func bybitSide(s model.Side) string {
	if s.IsBuy() {
		return "Buy"
	}
	return "Sell"
}

// PlaceOrder POST /v5/order/create，限价 GTC
func (c *PerpetualOrderClient) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	payload := map[string]any{
		"category":    categoryLinear,
		"symbol":      req.Symbol,
		"side":        bybitSide(req.Side),
		"orderType":   "Limit",
		"qty":         decimal.NewFromFloat(req.Size).String(),
		"price":       decimal.NewFromFloat(req.Price).String(),
		"timeInForce": "GTC",
	}
	if req.ReduceOnly {
		payload["reduceOnly"] = true
	}

	e, err := c.signedJSONRequest(exchange.WithoutNetworkRetry(ctx), http.MethodPost, "/v5/order/create", payload)
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}
	var res struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(e.Result, &res); err != nil || res.OrderID == "" {
		return "", fmt.Errorf("bybit: bad order response %s", string(e.Result))
	}

	log.Info().
		Str("exchange", "BYBIT").
		Str("symbol", req.Symbol).
		Str("side", req.Side.OrderSide()).
		Float64("quantity", req.Size).
		Float64("price", req.Price).
		Str("orderID", res.OrderID).
		Msg("order placed")
	return res.OrderID, nil
}

// CancelOrder POST /v5/order/cancel
func (c *PerpetualOrderClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	payload := map[string]string{
		"category": categoryLinear,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	if _, err := c.signedJSONRequest(ctx, http.MethodPost, "/v5/order/cancel", payload); err != nil {
		return fmt.Errorf("cancel order failed: %w", err)
	}
	log.Info().Str("exchange", "BYBIT").Str("symbol", symbol).Str("orderID", orderID).Msg("order cancelled")
	return nil
}

type orderItem struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	AvgPrice    string `json:"avgPrice"`
}

// GetOrderStatus GET /v5/order/realtime
func (c *PerpetualOrderClient) GetOrderStatus(ctx context.Context, symbol, orderID string) (model.OrderFill, error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	e, err := c.signedQueryRequest(ctx, http.MethodGet, "/v5/order/realtime", params)
	if err != nil {
		return model.OrderFill{}, fmt.Errorf("get order status failed: %w", err)
	}
	list, err := listResult[orderItem](e)
	if err != nil {
		return model.OrderFill{}, err
	}
	if len(list) == 0 {
		return model.OrderFill{}, fmt.Errorf("bybit: order %s not found", orderID)
	}

	o := list[0]
	qty, _ := strconv.ParseFloat(o.Qty, 64)
	filled, _ := strconv.ParseFloat(o.CumExecQty, 64)
	avg, _ := strconv.ParseFloat(o.AvgPrice, 64)
	return model.OrderFill{
		OrderID:       orderID,
		Status:        mapOrderStatus(o.OrderStatus),
		RequestedSize: qty,
		FilledSize:    filled,
		AvgPrice:      avg,
	}, nil
}

// mapOrderStatus New / PartiallyFilled / Filled / Cancelled / Rejected ...
func mapOrderStatus(s string) model.OrderStatus {
	switch s {
	case "Filled":
		return model.OrderFilled
	case "PartiallyFilled":
		return model.OrderPartiallyFilled
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return model.OrderCancelled
	case "Rejected":
		return model.OrderFailed
	default:
		return model.OrderPending
	}
}
