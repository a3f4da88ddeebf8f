package hyperliquid

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fundarb/internal/domain/model"
)

// Adapter Hyperliquid 永续，合约代码即币种名 (BTC)
type Adapter struct {
	info *InfoClient
	exc  *ExchangeClient
}

// NewAdapter 创建适配器
func NewAdapter(info *InfoClient, exc *ExchangeClient) *Adapter {
	return &Adapter{info: info, exc: exc}
}

func (a *Adapter) Venue() model.Venue { return model.VenueHyperliquid }

func (a *Adapter) Symbol(ticker string) string { return strings.ToUpper(strings.TrimSpace(ticker)) }

func (a *Adapter) ServerTime(ctx context.Context) (int64, error) {
	return a.info.ServerTime(ctx)
}

// QueryBalance Hyperliquid 保证金只有 USDC，asset 参数只用于日志
func (a *Adapter) QueryBalance(ctx context.Context, asset string) (float64, error) {
	return a.info.Withdrawable(ctx, a.exc.Account())
}

func (a *Adapter) QueryInstrumentSpec(ctx context.Context, symbol string) (model.InstrumentSpec, error) {
	return a.exc.InstrumentSpec(ctx, symbol)
}

func (a *Adapter) AdjustLeverage(ctx context.Context, symbol string, leverage int) error {
	return a.exc.SetLeverage(ctx, symbol, leverage)
}

func (a *Adapter) QueryPosition(ctx context.Context, symbol string) (model.PositionInfo, error) {
	return a.info.Position(ctx, a.exc.Account(), symbol)
}

func (a *Adapter) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	return a.exc.PlaceOrder(ctx, req)
}

func (a *Adapter) QueryOrderStatus(ctx context.Context, symbol, orderID string) (model.OrderFill, error) {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return model.OrderFill{}, fmt.Errorf("hyperliquid: bad order id %q", orderID)
	}
	return a.info.OrderStatus(ctx, a.exc.Account(), oid)
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return a.exc.CancelOrder(ctx, symbol, orderID)
}

// SubscribePrice l2Book 快照
func (a *Adapter) SubscribePrice(ctx context.Context, symbol string) (model.VenueQuote, error) {
	q, err := a.info.L2Book(ctx, symbol)
	if err != nil {
		return q, err
	}
	if spec, err := a.exc.InstrumentSpec(ctx, symbol); err == nil {
		q.TickSize = spec.TickSize
	}
	return q, nil
}
