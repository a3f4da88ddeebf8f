package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/storage"
)

const hourMs = int64(3600 * 1000)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type arbFixture struct {
	okx    *simVenue
	bin    *simVenue
	ledger *storage.InMemoryLedger
	pub    *recordingPublisher
	svc    *ArbitrageService
}

// newArbFixture OKX 张数合约 (ctVal 0.01) 与 Binance 币数量合约
func newArbFixture(dryRun bool) *arbFixture {
	okx := newSimVenue(model.VenueOKX, model.InstrumentSpec{QuantityPrecision: 2, ContractSize: 0.01, TickSize: 0.1, MaxLeverage: 50}, 10000)
	bin := newSimVenue(model.VenueBinance, model.InstrumentSpec{QuantityPrecision: 3, TickSize: 0.1, MaxLeverage: 3}, 5000)
	okx.setQuote(100, 100.2)
	bin.setQuote(100, 100.2)

	adapters := map[model.Venue]port.VenueAdapter{
		model.VenueOKX:     okx,
		model.VenueBinance: bin,
	}
	fees := model.FeeTable{model.VenueOKX: 0.0004, model.VenueBinance: 0.00036}

	exec := dsvc.DefaultExecutorConfig()
	exec.PriceBiasTicks = 0
	exec.MaxRetries = 2

	ledger := storage.NewInMemoryLedger()
	pub := &recordingPublisher{}
	svc := NewArbitrageService(
		adapters,
		dsvc.NewArbitrageSelector(fees, 3),
		dsvc.NewPositionSizer(0.1, 5),
		NewInstrumentCache(adapters),
		ledger,
		pub,
		ArbitrageConfig{MarginAsset: "USDT", DryRun: dryRun, Executor: exec},
	).WithSleeper(noSleep)
	return &arbFixture{okx: okx, bin: bin, ledger: ledger, pub: pub, svc: svc}
}

func tradeRecord() *model.FundingRecord {
	rec := model.NewFundingRecord("BTC", 1)
	rec.Set(model.VenueOKX, -0.001, hourMs)
	rec.Set(model.VenueBinance, 0.0002, hourMs)
	return rec
}

// TestDecideRecordsDecision 交易与不交易的决策都写入账本并广播
func TestDecideRecordsDecision(t *testing.T) {
	f := newArbFixture(false)
	ctx := context.Background()

	d := f.svc.Decide(ctx, tradeRecord())
	if !d.Trade || d.ID == "" {
		t.Fatalf("expected trade with id, got %+v", d)
	}
	if d.Arbitrage.Venue != model.VenueOKX || d.Arbitrage.Side != model.SideLong {
		t.Errorf("arbitrage leg mismatch: %+v", d.Arbitrage)
	}

	none := f.svc.Decide(ctx, model.NewFundingRecord("ETH", 1))
	if none.Trade {
		t.Fatalf("expected no trade")
	}

	if got := len(f.ledger.Decisions()); got != 2 {
		t.Errorf("expected 2 saved decisions, got %d", got)
	}
	if got := len(f.pub.decisions); got != 2 {
		t.Errorf("expected 2 published decisions, got %d", got)
	}
}

// TestOpenAndCloseCycle 开仓数量换算、杠杆取上限、平仓按抵消价格
func TestOpenAndCloseCycle(t *testing.T) {
	f := newArbFixture(false)
	ctx := context.Background()

	d := f.svc.Decide(ctx, tradeRecord())
	c, err := f.svc.Open(ctx, d)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// 可用 min(10000, 5000) × 0.1 = 500 USDT，/0.01 × 5 / 100 = 2500 张
	if !approx(c.Arb.Size, 2500) || !approx(c.Arb.EntryPrice, 100) {
		t.Errorf("arb position mismatch: %+v", c.Arb)
	}
	if c.Arb.Leverage != 5 {
		t.Errorf("arb leverage mismatch: %d", c.Arb.Leverage)
	}
	// 2500 张 × 0.01 = 25 BTC
	if !approx(c.Hedge.Size, 25) || !approx(c.Hedge.EntryPrice, 100.2) {
		t.Errorf("hedge position mismatch: %+v", c.Hedge)
	}
	if c.Hedge.Leverage != 3 {
		t.Errorf("hedge leverage should be capped at venue max, got %d", c.Hedge.Leverage)
	}
	if c.Hedge.Side != model.SideShort {
		t.Errorf("hedge side mismatch: %s", c.Hedge.Side)
	}

	f.okx.setQuote(101, 101.2)
	f.bin.setQuote(101, 101.2)
	if err := f.svc.Close(ctx, c); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 套利方平多取卖一价
	if !approx(c.Arb.ClosePrice, 101.2) {
		t.Errorf("arb close price mismatch: %v", c.Arb.ClosePrice)
	}
	// 101.2 + 100.2 - 100 = 101.4，平空取 max(101.4, 101)
	if !approx(c.Hedge.ClosePrice, 101.4) {
		t.Errorf("hedge close price mismatch: %v", c.Hedge.ClosePrice)
	}
	if f.okx.position != 0 || f.bin.position != 0 {
		t.Errorf("positions should be flat: okx=%v bin=%v", f.okx.position, f.bin.position)
	}

	last := f.bin.placed[len(f.bin.placed)-1]
	if !last.ReduceOnly || last.Side != model.SideLong {
		t.Errorf("hedge close order mismatch: %+v", last)
	}

	for _, p := range []*model.Position{c.Arb, c.Hedge} {
		saved, ok := f.ledger.Position(p.ID)
		if !ok || saved.Status != model.PositionClosed {
			t.Errorf("position %s not closed in ledger: %+v", p.ID, saved)
		}
	}
	if len(f.ledger.Attempts()) != 4 {
		t.Errorf("expected 4 order attempts, got %d", len(f.ledger.Attempts()))
	}
}

// TestOpenHedgeFailure 对冲方失败时报告 ErrUnhedged，套利仓位保留
func TestOpenHedgeFailure(t *testing.T) {
	f := newArbFixture(false)
	f.bin.placeErr = errors.New("insufficient margin")
	ctx := context.Background()

	c, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord()))
	if !errors.Is(err, ErrUnhedged) {
		t.Fatalf("expected ErrUnhedged, got %v", err)
	}
	if c == nil || c.Arb == nil || c.Arb.Status != model.PositionOpen {
		t.Fatalf("arb position should stay open: %+v", c)
	}
	if c.Hedge.Status != model.PositionFailed {
		t.Errorf("hedge status mismatch: %s", c.Hedge.Status)
	}
	if f.bin.orderCount() != 2 {
		t.Errorf("hedge should retry up to max retries, got %d orders", f.bin.orderCount())
	}
	open, _ := f.ledger.ListOpenPositions(ctx)
	if len(open) != 1 || open[0].Role != model.RoleArbitrage {
		t.Errorf("expected only the arb position open, got %+v", open)
	}
}

// TestOpenSizingFailsBeforeOrders 数量为 0 时不下任何单
func TestOpenSizingFailsBeforeOrders(t *testing.T) {
	f := newArbFixture(false)
	f.bin.balance = 0.0001
	ctx := context.Background()

	_, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord()))
	if !errors.Is(err, dsvc.ErrSizing) {
		t.Fatalf("expected sizing error, got %v", err)
	}
	if f.okx.orderCount() != 0 || f.bin.orderCount() != 0 {
		t.Errorf("no order should be placed")
	}
}

// TestOpenDryRun dry-run 只计算不下单
func TestOpenDryRun(t *testing.T) {
	f := newArbFixture(true)
	ctx := context.Background()

	c, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !c.DryRun || c.Arb != nil {
		t.Errorf("dry run cycle mismatch: %+v", c)
	}
	if f.okx.orderCount() != 0 || f.bin.orderCount() != 0 {
		t.Errorf("dry run should not place orders")
	}
	if err := f.svc.Close(ctx, c); err != nil {
		t.Errorf("closing dry run cycle should be a no-op: %v", err)
	}
}

// TestOpenRejectsNoTrade 不交易的决策不能开仓
func TestOpenRejectsNoTrade(t *testing.T) {
	f := newArbFixture(false)
	if _, err := f.svc.Open(context.Background(), model.NoTrade("BTC", "test")); err == nil {
		t.Fatalf("expected error")
	}
}

// TestOpenRejectsDuplicateCycle 未平仓前同一标的不能再开仓
func TestOpenRejectsDuplicateCycle(t *testing.T) {
	f := newArbFixture(false)
	ctx := context.Background()

	c, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord())); !errors.Is(err, dsvc.ErrCycleActive) {
		t.Fatalf("expected ErrCycleActive, got %v", err)
	}
	if n := len(f.svc.ActiveCycles()); n != 1 {
		t.Errorf("expected 1 active cycle, got %d", n)
	}

	if err := f.svc.Close(ctx, c); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := len(f.svc.ActiveCycles()); n != 0 {
		t.Errorf("cycle should be released after close, got %d", n)
	}
}

// TestCloseHedgePartialFill 对冲方重试耗尽但有部分成交，平仓时一并平掉
func TestCloseHedgePartialFill(t *testing.T) {
	f := newArbFixture(false)
	f.bin.setFillRatio(0.5)
	ctx := context.Background()

	c, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord()))
	if !errors.Is(err, ErrUnhedged) {
		t.Fatalf("expected ErrUnhedged, got %v", err)
	}
	// 25 -> 12.5 + 6.25
	if c.Hedge.Status != model.PositionOpen || !approx(c.Hedge.Size, 18.75) {
		t.Fatalf("partial hedge should stay open with its filled size: %+v", c.Hedge)
	}
	if !approx(c.Hedge.EntryPrice, 100.2) {
		t.Errorf("hedge entry price expected 100.2, got %v", c.Hedge.EntryPrice)
	}
	open, _ := f.ledger.ListOpenPositions(ctx)
	if len(open) != 2 {
		t.Errorf("both legs should be open in the ledger, got %d", len(open))
	}

	f.bin.setFillRatio(0)
	if err := f.svc.Close(ctx, c); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !approx(f.okx.position, 0) || !approx(f.bin.position, 0) {
		t.Errorf("venues should be flat: okx=%v bin=%v", f.okx.position, f.bin.position)
	}
	if last := f.bin.placed[len(f.bin.placed)-1]; !last.ReduceOnly || !approx(last.Size, 18.75) {
		t.Errorf("hedge close order mismatch: %+v", last)
	}
	if open, _ := f.ledger.ListOpenPositions(ctx); len(open) != 0 {
		t.Errorf("expected no open positions, got %d", len(open))
	}
	if len(f.svc.ActiveCycles()) != 0 {
		t.Errorf("cycle guard should be released")
	}
}
