package okx

import (
	"context"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// Adapter OKX USDT 本位永续 (SWAP)
type Adapter struct {
	mgr     *PerpetualManager
	symbols exchange.SymbolConverter
}

// NewAdapter 创建适配器
func NewAdapter(mgr *PerpetualManager) *Adapter {
	return &Adapter{mgr: mgr, symbols: exchange.NewCommonSymbolConverter("-USDT-SWAP")}
}

func (a *Adapter) Venue() model.Venue { return model.VenueOKX }

// Symbol BTC -> BTC-USDT-SWAP
func (a *Adapter) Symbol(ticker string) string { return a.symbols.Coin2Symbol(ticker) }

func (a *Adapter) ServerTime(ctx context.Context) (int64, error) {
	return a.mgr.Market.ServerTime(ctx)
}

func (a *Adapter) QueryBalance(ctx context.Context, asset string) (float64, error) {
	return a.mgr.Account.GetBalance(ctx, asset)
}

func (a *Adapter) QueryInstrumentSpec(ctx context.Context, symbol string) (model.InstrumentSpec, error) {
	return a.mgr.Market.InstrumentSpec(ctx, symbol)
}

func (a *Adapter) AdjustLeverage(ctx context.Context, symbol string, leverage int) error {
	return a.mgr.Account.SetLeverage(ctx, symbol, leverage)
}

func (a *Adapter) QueryPosition(ctx context.Context, symbol string) (model.PositionInfo, error) {
	return a.mgr.Position.GetPosition(ctx, symbol)
}

func (a *Adapter) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	return a.mgr.Order.PlaceOrder(ctx, req)
}

func (a *Adapter) QueryOrderStatus(ctx context.Context, symbol, orderID string) (model.OrderFill, error) {
	return a.mgr.Order.GetOrderStatus(ctx, symbol, orderID)
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return a.mgr.Order.CancelOrder(ctx, symbol, orderID)
}

func (a *Adapter) SubscribePrice(ctx context.Context, symbol string) (model.VenueQuote, error) {
	return a.mgr.Ticker.Ticker(ctx, symbol)
}
