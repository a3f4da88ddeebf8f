package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

// ServerClock 交易所时间源
type ServerClock interface {
	Venue() model.Venue
	ServerTime(ctx context.Context) (int64, error)
}

// Reporter 快照与决策的终端输出
type Reporter interface {
	Snapshot(ts time.Time, rec *model.FundingRecord)
	Decision(ts time.Time, d model.ArbitrageDecision)
}

// SchedulerConfig 相对结算时间 T 的时间节点
type SchedulerConfig struct {
	Tickers   []string
	FetchLead time.Duration // T - FetchLead 拉取资金费率
	OpenLead  time.Duration // T - OpenLead 开仓
	CloseLag  time.Duration // T + CloseLag 平仓
}

// FundingScheduler 每个整点结算前后完成一次 拉取 -> 决策 -> 开仓 -> 平仓，
// 一个周期结束后才开始下一个
type FundingScheduler struct {
	snapshot  *SnapshotService
	arb       *ArbitrageService
	positions *PositionService
	clock     ServerClock
	reporter  Reporter
	cfg       SchedulerConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFundingScheduler(
	snapshot *SnapshotService,
	arb *ArbitrageService,
	positions *PositionService,
	clock ServerClock,
	reporter Reporter,
	cfg SchedulerConfig,
) *FundingScheduler {
	if cfg.FetchLead <= 0 {
		cfg.FetchLead = 10 * time.Minute
	}
	if cfg.OpenLead <= 0 {
		cfg.OpenLead = time.Minute
	}
	if cfg.CloseLag <= 0 {
		cfg.CloseLag = 5 * time.Second
	}
	return &FundingScheduler{
		snapshot:  snapshot,
		arb:       arb,
		positions: positions,
		clock:     clock,
		reporter:  reporter,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// WithClock 替换本地时钟和等待函数（测试用）
func (f *FundingScheduler) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *FundingScheduler {
	f.now = now
	f.sleep = sleep
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Now 交易所时间，取不到时退回本地时钟
func (f *FundingScheduler) Now(ctx context.Context) time.Time {
	local := f.now()
	if f.clock == nil {
		return local
	}
	ms, err := f.clock.ServerTime(ctx)
	if err != nil || ms <= 0 {
		if err == nil {
			err = dsvc.ErrClockUnavailable
		}
		log.Warn().Err(err).Str("exchange", f.clock.Venue().String()).Msg("server time unavailable, using local clock")
		return local
	}
	return time.UnixMilli(ms)
}

// NextSettlement 下一个还来得及开仓的整点
func (f *FundingScheduler) NextSettlement(now time.Time) time.Time {
	t := now.Truncate(time.Hour).Add(time.Hour)
	if !now.Before(t.Add(-f.cfg.OpenLead)) {
		t = t.Add(time.Hour)
	}
	return t
}

func (f *FundingScheduler) sleepUntil(ctx context.Context, at time.Time) error {
	return f.sleep(ctx, at.Sub(f.Now(ctx)))
}

// Run 先平掉账本里遗留的仓位，然后逐个结算周期运行直到 ctx 取消
func (f *FundingScheduler) Run(ctx context.Context) error {
	if err := f.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("recover open positions failed")
	}
	for {
		settlement := f.NextSettlement(f.Now(ctx))
		log.Info().Time("settlement", settlement).Strs("tickers", f.cfg.Tickers).Msg("next funding cycle")

		if err := f.RunCycle(ctx, settlement); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Time("settlement", settlement).Msg("funding cycle finished with errors")
		}
		// 无交易或提前失败时周期在 T 之前就返回了，等过结算点再算下一个 T
		if err := f.sleepUntil(ctx, settlement.Add(f.cfg.CloseLag)); err != nil {
			return err
		}
	}
}

// Recover 平掉上次进程留下的未平仓周期
func (f *FundingScheduler) Recover(ctx context.Context) error {
	if f.positions == nil {
		return nil
	}
	cycles, err := f.positions.OpenCycles(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range cycles {
		if err := f.arb.Track(c); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Warn().Str("cycle", c.ID).Str("symbol", c.Decision.Ticker).Msg("closing leftover positions")
		if err := f.arb.Close(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("cycle %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

// RunCycle 针对结算时间 settlement 执行一个完整周期
func (f *FundingScheduler) RunCycle(ctx context.Context, settlement time.Time) error {
	if err := f.sleepUntil(ctx, settlement.Add(-f.cfg.FetchLead)); err != nil {
		return err
	}

	records, err := f.snapshot.Fetch(ctx, f.cfg.Tickers)
	if err != nil {
		return fmt.Errorf("funding snapshot: %w", err)
	}

	var trades []model.ArbitrageDecision
	for _, ticker := range f.cfg.Tickers {
		rec, ok := records[ticker]
		if !ok {
			continue
		}
		if f.reporter != nil {
			f.reporter.Snapshot(f.now(), rec)
		}
		d := f.arb.Decide(ctx, rec)
		if f.reporter != nil {
			f.reporter.Decision(f.now(), d)
		}
		if !d.Trade {
			continue
		}
		// 最近的结算不在本周期内，平仓时拿不到资金费
		if d.FundingTime > settlement.UnixMilli() {
			log.Info().
				Str("symbol", d.Ticker).
				Int64("funding_time", d.FundingTime).
				Time("settlement", settlement).
				Msg("funding time outside this cycle, skipped")
			continue
		}
		trades = append(trades, d)
	}
	if len(trades) == 0 {
		return nil
	}

	if err := f.sleepUntil(ctx, settlement.Add(-f.cfg.OpenLead)); err != nil {
		return err
	}

	var (
		cycles []*Cycle
		errs   []error
	)
	for _, d := range trades {
		c, err := f.arb.Open(ctx, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", d.Ticker, err))
		}
		if c != nil && c.Arb != nil {
			cycles = append(cycles, c)
		}
	}
	if len(cycles) == 0 {
		return errors.Join(errs...)
	}

	if err := f.sleepUntil(ctx, settlement.Add(f.cfg.CloseLag)); err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	for _, c := range cycles {
		if err := f.arb.Close(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.Decision.Ticker, err))
		}
	}
	return errors.Join(errs...)
}
