package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

// ErrUnhedged 套利方已成交但对冲方失败，需要人工处理
var ErrUnhedged = errors.New("arbitrage leg open without hedge")

// ArbitrageConfig 开平仓参数
type ArbitrageConfig struct {
	MarginAsset string
	DryRun      bool
	Executor    dsvc.ExecutorConfig
}

// Cycle 一次开仓 + 平仓的两条腿
type Cycle struct {
	ID       string
	Decision model.ArbitrageDecision
	Arb      *model.Position
	Hedge    *model.Position
	DryRun   bool
}

// ArbitrageService 决策 -> 计算仓位 -> 两条腿顺序下单 -> 平仓
type ArbitrageService struct {
	adapters   map[model.Venue]port.VenueAdapter
	selector   *dsvc.ArbitrageSelector
	sizer      *dsvc.PositionSizer
	reconciler dsvc.HedgeReconciler
	guard      *dsvc.CycleGuard
	index      port.InstrumentIndex
	ledger     port.Ledger
	publisher  port.DecisionPublisher
	cfg        ArbitrageConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

func NewArbitrageService(
	adapters map[model.Venue]port.VenueAdapter,
	selector *dsvc.ArbitrageSelector,
	sizer *dsvc.PositionSizer,
	index port.InstrumentIndex,
	ledger port.Ledger,
	publisher port.DecisionPublisher,
	cfg ArbitrageConfig,
) *ArbitrageService {
	if cfg.MarginAsset == "" {
		cfg.MarginAsset = "USDT"
	}
	return &ArbitrageService{
		adapters:  adapters,
		selector:  selector,
		sizer:     sizer,
		index:     index,
		ledger:    ledger,
		publisher: publisher,
		guard:     dsvc.NewCycleGuard(),
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithSleeper 替换执行器的等待函数（测试用）
func (s *ArbitrageService) WithSleeper(fn func(ctx context.Context, d time.Duration) error) *ArbitrageService {
	s.sleep = fn
	return s
}

// Decide 选出最优交易所组合，不交易的决策同样落库
func (s *ArbitrageService) Decide(ctx context.Context, rec *model.FundingRecord) model.ArbitrageDecision {
	d := s.selector.Select(rec)
	d.ID = s.newID()
	if d.Timestamp == 0 {
		d.Timestamp = s.now().UnixMilli()
	}

	if err := s.ledger.SaveDecision(ctx, &d); err != nil {
		log.Error().Err(err).Str("symbol", d.Ticker).Msg("save decision failed")
	}
	if s.publisher != nil {
		if err := s.publisher.PublishDecision(ctx, &d); err != nil {
			log.Warn().Err(err).Str("symbol", d.Ticker).Msg("publish decision failed")
		}
	}

	if !d.Trade {
		log.Info().Str("symbol", d.Ticker).Str("reason", d.Reason).Msg("no trade")
		return d
	}
	log.Info().
		Str("symbol", d.Ticker).
		Str("arb", d.Arbitrage.Venue.String()).
		Str("arb_side", d.Arbitrage.Side.String()).
		Float64("arb_rate", d.Arbitrage.Rate).
		Str("hedge", d.Hedge.Venue.String()).
		Str("hedge_side", d.Hedge.Side.String()).
		Float64("hedge_rate", d.Hedge.Rate).
		Float64("net", d.ExpectedNetRate).
		Int64("funding_time", d.FundingTime).
		Strs("excluded", venueStrings(d.Excluded)).
		Msg("arbitrage decision")
	return d
}

func (s *ArbitrageService) adapter(v model.Venue) (port.VenueAdapter, error) {
	ad, ok := s.adapters[v]
	if !ok {
		return nil, fmt.Errorf("exchange %s not enabled", v)
	}
	return ad, nil
}

func (s *ArbitrageService) executor(ad port.VenueAdapter) *dsvc.OrderExecutor {
	exec := dsvc.NewOrderExecutor(ad, s.cfg.Executor, s.ledger)
	if s.sleep != nil {
		exec.WithSleeper(s.sleep)
	}
	return exec
}

// Open 开仓：先套利方，成交后按实际数量换算对冲方数量再下单。
// 仓位计算或杠杆设置失败时在下单前返回
func (s *ArbitrageService) Open(ctx context.Context, d model.ArbitrageDecision) (*Cycle, error) {
	if !d.Trade {
		return nil, fmt.Errorf("decision %s is no trade", d.ID)
	}
	arbAd, err := s.adapter(d.Arbitrage.Venue)
	if err != nil {
		return nil, err
	}
	hedgeAd, err := s.adapter(d.Hedge.Venue)
	if err != nil {
		return nil, err
	}

	cycle := &Cycle{ID: s.newID(), Decision: d, DryRun: s.cfg.DryRun}
	if err := s.guard.Acquire(d.Ticker, cycle.ID, arbAd.Venue(), hedgeAd.Venue()); err != nil {
		return nil, err
	}
	// 套利方没有成交时释放
	opened := false
	defer func() {
		if !opened {
			s.guard.Release(d.Ticker, cycle.ID)
		}
	}()

	arbSym := arbAd.Symbol(d.Ticker)
	hedgeSym := hedgeAd.Symbol(d.Ticker)

	arbSpec, err := s.index.Spec(ctx, arbAd.Venue(), arbSym)
	if err != nil {
		return nil, err
	}
	hedgeSpec, err := s.index.Spec(ctx, hedgeAd.Venue(), hedgeSym)
	if err != nil {
		return nil, err
	}

	// 两边都要能承担，取较小的可用保证金
	arbBal, err := arbAd.QueryBalance(ctx, s.cfg.MarginAsset)
	if err != nil {
		return nil, fmt.Errorf("%s balance: %w", arbAd.Venue(), err)
	}
	hedgeBal, err := hedgeAd.QueryBalance(ctx, s.cfg.MarginAsset)
	if err != nil {
		return nil, fmt.Errorf("%s balance: %w", hedgeAd.Venue(), err)
	}
	available := math.Min(arbBal, hedgeBal)

	quote, err := arbAd.SubscribePrice(ctx, arbSym)
	if err != nil {
		return nil, fmt.Errorf("%s quote: %w", arbAd.Venue(), err)
	}
	price := quote.Reference(d.Arbitrage.Side)

	arbSize, arbLev, err := s.sizer.Size(available, arbSpec, price)
	if err != nil {
		return nil, fmt.Errorf("size %s %s: %w", arbAd.Venue(), arbSym, err)
	}
	hedgeLev := s.sizer.EffectiveLeverage(hedgeSpec.MaxLeverage)
	plannedHedge, err := dsvc.ConvertSize(arbSize, arbSpec, hedgeSpec)
	if err != nil {
		return nil, fmt.Errorf("size %s %s: %w", hedgeAd.Venue(), hedgeSym, err)
	}

	logger := log.With().
		Str("cycle", cycle.ID).
		Str("symbol", d.Ticker).
		Logger()

	if s.cfg.DryRun {
		logger.Info().
			Str("arb", arbAd.Venue().String()).
			Float64("arb_size", arbSize).
			Int("arb_leverage", arbLev).
			Str("hedge", hedgeAd.Venue().String()).
			Float64("hedge_size", plannedHedge).
			Int("hedge_leverage", hedgeLev).
			Float64("price", price).
			Float64("available", available).
			Msg("dry run, orders not placed")
		return cycle, nil
	}

	if err := arbAd.AdjustLeverage(ctx, arbSym, arbLev); err != nil {
		return nil, fmt.Errorf("%s leverage: %w", arbAd.Venue(), err)
	}
	if err := hedgeAd.AdjustLeverage(ctx, hedgeSym, hedgeLev); err != nil {
		return nil, fmt.Errorf("%s leverage: %w", hedgeAd.Venue(), err)
	}

	arbReport, err := s.executor(arbAd).Execute(ctx, dsvc.OrderIntent{
		CycleID: cycle.ID,
		Role:    model.RoleArbitrage,
		Symbol:  arbSym,
		Side:    d.Arbitrage.Side,
		Size:    arbSize,
		Spec:    arbSpec,
	})
	if err != nil {
		if arbReport != nil && arbReport.FilledSize > 0 {
			// 部分成交后失败，记录下来便于人工处理
			p := s.newPosition(cycle, d.Ticker, arbAd.Venue(), arbSym, model.RoleArbitrage, d.Arbitrage.Side, arbLev, arbReport)
			p.Status = model.PositionFailed
			s.savePosition(ctx, p)
			logger.Error().Err(err).
				Bool("unhedged", true).
				Str("exchange", p.Venue.String()).
				Float64("filled", p.Size).
				Msg("arbitrage leg failed after partial fill")
		}
		return nil, fmt.Errorf("open arbitrage leg: %w", err)
	}
	cycle.Arb = s.newPosition(cycle, d.Ticker, arbAd.Venue(), arbSym, model.RoleArbitrage, d.Arbitrage.Side, arbLev, arbReport)
	opened = true

	hedgeSize, err := dsvc.ConvertSize(cycle.Arb.Size, arbSpec, hedgeSpec)
	if err != nil {
		hedgeSize = plannedHedge
	}
	hedgeReport, herr := s.executor(hedgeAd).Execute(ctx, dsvc.OrderIntent{
		CycleID: cycle.ID,
		Role:    model.RoleHedge,
		Symbol:  hedgeSym,
		Side:    d.Hedge.Side,
		Size:    hedgeSize,
		Spec:    hedgeSpec,
	})
	cycle.Hedge = s.newPosition(cycle, d.Ticker, hedgeAd.Venue(), hedgeSym, model.RoleHedge, d.Hedge.Side, hedgeLev, hedgeReport)
	// 部分成交的对冲仓位仍然存在，保持 OPEN 以便平仓和重启恢复
	if herr != nil && cycle.Hedge.Size <= 0 {
		cycle.Hedge.Status = model.PositionFailed
	}

	s.savePosition(ctx, cycle.Arb)
	s.savePosition(ctx, cycle.Hedge)

	if herr != nil {
		logger.Error().Err(herr).
			Bool("unhedged", true).
			Str("arb", cycle.Arb.Venue.String()).
			Str("arb_side", cycle.Arb.Side.String()).
			Float64("arb_size", cycle.Arb.Size).
			Float64("arb_entry", cycle.Arb.EntryPrice).
			Str("hedge", cycle.Hedge.Venue.String()).
			Float64("hedge_filled", cycle.Hedge.Size).
			Msg("hedge leg failed")
		return cycle, fmt.Errorf("%w: %v", ErrUnhedged, herr)
	}

	logger.Info().
		Str("arb", cycle.Arb.Venue.String()).
		Float64("arb_size", cycle.Arb.Size).
		Float64("arb_entry", cycle.Arb.EntryPrice).
		Str("hedge", cycle.Hedge.Venue.String()).
		Float64("hedge_size", cycle.Hedge.Size).
		Float64("hedge_entry", cycle.Hedge.EntryPrice).
		Msg("cycle opened")
	return cycle, nil
}

// Close 平仓：套利方先按新报价平仓，对冲方按抵消价格平仓。数量都以交易所持仓为准
func (s *ArbitrageService) Close(ctx context.Context, c *Cycle) error {
	if c == nil || c.DryRun {
		return nil
	}
	if c.Arb == nil || c.Arb.Status != model.PositionOpen {
		return fmt.Errorf("cycle %s: no open arbitrage position", c.ID)
	}
	arbAd, err := s.adapter(c.Arb.Venue)
	if err != nil {
		return err
	}

	arbSpec, err := s.index.Spec(ctx, c.Arb.Venue, c.Arb.Symbol)
	if err != nil {
		return err
	}
	arbSize := s.liveSize(ctx, arbAd, c.Arb)
	arbReport, err := s.executor(arbAd).Execute(ctx, dsvc.OrderIntent{
		CycleID:    c.ID,
		Role:       model.RoleArbitrage,
		Symbol:     c.Arb.Symbol,
		Side:       c.Arb.Side.Opposite(),
		Size:       arbSize,
		Spec:       arbSpec,
		ReduceOnly: true,
	})
	if err != nil {
		return fmt.Errorf("close arbitrage leg: %w", err)
	}
	s.closePosition(ctx, c.Arb, arbReport.AvgPrice)

	if !hasExposure(c.Hedge) {
		s.guard.Release(c.Decision.Ticker, c.ID)
		return nil
	}
	hedgeAd, err := s.adapter(c.Hedge.Venue)
	if err != nil {
		return err
	}
	hedgeSpec, err := s.index.Spec(ctx, c.Hedge.Venue, c.Hedge.Symbol)
	if err != nil {
		return err
	}

	arbOpen, arbClose, hedgeOpen := c.Arb.EntryPrice, c.Arb.ClosePrice, c.Hedge.EntryPrice
	hedgeSide := c.Hedge.Side
	closeSide := hedgeSide.Opposite()
	hedgeReport, err := s.executor(hedgeAd).Execute(ctx, dsvc.OrderIntent{
		CycleID:    c.ID,
		Role:       model.RoleHedge,
		Symbol:     c.Hedge.Symbol,
		Side:       closeSide,
		Size:       s.liveSize(ctx, hedgeAd, c.Hedge),
		Spec:       hedgeSpec,
		ReduceOnly: true,
		Price: func(q model.VenueQuote) float64 {
			target, neutral := s.reconciler.TargetPrice(arbOpen, arbClose, hedgeOpen, q.Reference(closeSide), hedgeSide)
			log.Debug().
				Str("cycle", c.ID).
				Float64("neutral", neutral).
				Float64("target", target).
				Msg("hedge close price")
			return target
		},
	})
	if err != nil {
		log.Error().Err(err).
			Bool("unhedged", true).
			Str("cycle", c.ID).
			Str("exchange", c.Hedge.Venue.String()).
			Str("symbol", c.Hedge.Symbol).
			Float64("size", c.Hedge.Size).
			Msg("hedge close failed")
		return fmt.Errorf("close hedge leg: %w", err)
	}
	s.closePosition(ctx, c.Hedge, hedgeReport.AvgPrice)
	s.guard.Release(c.Decision.Ticker, c.ID)

	log.Info().
		Str("cycle", c.ID).
		Str("symbol", c.Decision.Ticker).
		Float64("arb_pnl", pricePnL(c.Arb)).
		Float64("hedge_pnl", pricePnL(c.Hedge)).
		Msg("cycle closed")
	return nil
}

// Track 登记从账本恢复的周期，平仓前不允许同一标的再开仓
func (s *ArbitrageService) Track(c *Cycle) error {
	if c == nil || c.Arb == nil {
		return nil
	}
	hedge := model.Venue("")
	if c.Hedge != nil {
		hedge = c.Hedge.Venue
	}
	return s.guard.Acquire(c.Decision.Ticker, c.ID, c.Arb.Venue, hedge)
}

// ActiveCycles 当前未平仓的周期
func (s *ArbitrageService) ActiveCycles() []dsvc.ActiveCycle {
	return s.guard.Snapshot()
}

// liveSize 交易所持仓数量，查询失败时使用开仓记录
func (s *ArbitrageService) liveSize(ctx context.Context, ad port.VenueAdapter, p *model.Position) float64 {
	info, err := ad.QueryPosition(ctx, p.Symbol)
	if err != nil || info.AbsSize() == 0 {
		log.Warn().Err(err).
			Str("exchange", p.Venue.String()).
			Str("symbol", p.Symbol).
			Float64("recorded", p.Size).
			Msg("live position unavailable, using recorded size")
		return p.Size
	}
	return info.AbsSize()
}

func (s *ArbitrageService) newPosition(c *Cycle, ticker string, venue model.Venue, symbol string, role model.Role, side model.Side, lev int, r *dsvc.ExecutionReport) *model.Position {
	p := &model.Position{
		ID:       s.newID(),
		CycleID:  c.ID,
		Venue:    venue,
		Ticker:   ticker,
		Symbol:   symbol,
		Role:     role,
		Side:     side,
		Leverage: lev,
		Status:   model.PositionOpen,
		OpenedAt: s.now().UnixMilli(),
	}
	if r == nil {
		return p
	}
	p.Size = r.FilledSize
	p.EntryPrice = r.AvgPrice
	// 成交后的持仓查询优先
	if r.PositionOK && r.Position.AbsSize() > 0 {
		p.Size = r.Position.AbsSize()
		if r.Position.EntryPrice > 0 {
			p.EntryPrice = r.Position.EntryPrice
		}
	}
	return p
}

func (s *ArbitrageService) savePosition(ctx context.Context, p *model.Position) {
	if err := s.ledger.SavePosition(ctx, p); err != nil {
		log.Error().Err(err).Str("position", p.ID).Msg("save position failed")
	}
}

func (s *ArbitrageService) closePosition(ctx context.Context, p *model.Position, price float64) {
	p.ClosePrice = price
	p.Status = model.PositionClosed
	p.ClosedAt = s.now().UnixMilli()
	if err := s.ledger.UpdatePosition(ctx, p); err != nil {
		log.Error().Err(err).Str("position", p.ID).Msg("update position failed")
	}
}

// hasExposure 对冲方有成交且尚未平仓，包括重试耗尽前的部分成交
func hasExposure(p *model.Position) bool {
	return p != nil && p.Status != model.PositionClosed && p.Size > 0
}

// pricePnL 不含资金费和手续费的价格盈亏
func pricePnL(p *model.Position) float64 {
	return (p.ClosePrice - p.EntryPrice) * p.Size * p.Side.Sign()
}

func venueStrings(vs []model.Venue) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.String())
	}
	return out
}
