package service

import (
	"context"
	"testing"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// fakeClock sleep 直接推进时间
type fakeClock struct {
	cur    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.cur }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.cur = c.cur.Add(d)
	}
	return ctx.Err()
}

type recordingReporter struct {
	snapshots int
	decisions []model.ArbitrageDecision
}

func (r *recordingReporter) Snapshot(ts time.Time, rec *model.FundingRecord) { r.snapshots++ }

func (r *recordingReporter) Decision(ts time.Time, d model.ArbitrageDecision) {
	r.decisions = append(r.decisions, d)
}

func newTestScheduler(f *arbFixture, clock *fakeClock, fundingTime int64) (*FundingScheduler, *recordingReporter) {
	src := &staticSource{name: "test", quotes: []port.FundingQuote{
		{Ticker: "BTC", Venue: model.VenueOKX, Rate: -0.001, NextFundingTime: fundingTime},
		{Ticker: "BTC", Venue: model.VenueBinance, Rate: 0.0002, NextFundingTime: fundingTime},
	}}
	rep := &recordingReporter{}
	s := NewFundingScheduler(
		NewSnapshotService(nil, nil, src),
		f.svc,
		NewPositionService(f.ledger),
		nil,
		rep,
		SchedulerConfig{Tickers: []string{"BTC"}},
	).WithClock(clock.now, clock.sleep)
	return s, rep
}

// TestNextSettlement 来不及开仓时顺延到下一个整点
func TestNextSettlement(t *testing.T) {
	s := NewFundingScheduler(nil, nil, nil, nil, nil, SchedulerConfig{})
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{base.Add(30 * time.Minute), base.Add(time.Hour)},
		{base.Add(58*time.Minute + 59*time.Second), base.Add(time.Hour)},
		{base.Add(59 * time.Minute), base.Add(2 * time.Hour)},
		{base, base.Add(time.Hour)},
	}
	for _, tc := range cases {
		if got := s.NextSettlement(tc.now); !got.Equal(tc.want) {
			t.Errorf("NextSettlement(%s) = %s, want %s", tc.now.Format(time.TimeOnly), got.Format(time.TimeOnly), tc.want.Format(time.TimeOnly))
		}
	}
}

// TestRunCycle 拉取 -> 开仓 -> 平仓，时间节点为 T-10m / T-1m / T+5s
func TestRunCycle(t *testing.T) {
	settlement := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	clock := &fakeClock{cur: settlement.Add(-30 * time.Minute)}
	f := newArbFixture(false)
	s, rep := newTestScheduler(f, clock, settlement.UnixMilli())

	if err := s.RunCycle(context.Background(), settlement); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if rep.snapshots != 1 || len(rep.decisions) != 1 || !rep.decisions[0].Trade {
		t.Fatalf("reporter mismatch: %+v", rep)
	}
	if f.okx.orderCount() != 2 || f.bin.orderCount() != 2 {
		t.Errorf("expected open+close on both venues, got okx=%d bin=%d", f.okx.orderCount(), f.bin.orderCount())
	}
	if want := settlement.Add(5 * time.Second); !clock.cur.Equal(want) {
		t.Errorf("cycle should end at %s, ended at %s", want, clock.cur)
	}
	if len(clock.sleeps) < 3 || clock.sleeps[0] != 20*time.Minute || clock.sleeps[1] != 9*time.Minute {
		t.Errorf("unexpected sleeps: %v", clock.sleeps)
	}
	open, _ := f.ledger.ListOpenPositions(context.Background())
	if len(open) != 0 {
		t.Errorf("all positions should be closed, got %d open", len(open))
	}
}

// TestRunCycleSkipsLaterFunding 结算时间不在本周期的决策不开仓
func TestRunCycleSkipsLaterFunding(t *testing.T) {
	settlement := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	clock := &fakeClock{cur: settlement.Add(-30 * time.Minute)}
	f := newArbFixture(false)
	s, rep := newTestScheduler(f, clock, settlement.Add(7*time.Hour).UnixMilli())

	if err := s.RunCycle(context.Background(), settlement); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(rep.decisions) != 1 {
		t.Fatalf("decision should still be reported")
	}
	if f.okx.orderCount() != 0 || f.bin.orderCount() != 0 {
		t.Errorf("no order expected")
	}
}

// TestRecoverClosesLeftovers 重启后平掉账本里的未平仓周期
func TestRecoverClosesLeftovers(t *testing.T) {
	f := newArbFixture(false)
	ctx := context.Background()
	if _, err := f.svc.Open(ctx, f.svc.Decide(ctx, tradeRecord())); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	clock := &fakeClock{cur: time.Date(2026, 1, 1, 11, 0, 5, 0, time.UTC)}
	s, _ := newTestScheduler(f, clock, 0)
	if err := s.Recover(ctx); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	open, _ := f.ledger.ListOpenPositions(ctx)
	if len(open) != 0 {
		t.Errorf("expected no open positions, got %d", len(open))
	}
	if f.okx.position != 0 || f.bin.position != 0 {
		t.Errorf("venues should be flat: okx=%v bin=%v", f.okx.position, f.bin.position)
	}
}

// TestNowFallsBackToLocalClock 交易所时间不可用时使用本地时钟
func TestNowFallsBackToLocalClock(t *testing.T) {
	v := newSimVenue(model.VenueOKX, model.InstrumentSpec{}, 0)
	v.timeErr = context.DeadlineExceeded
	local := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewFundingScheduler(nil, nil, nil, v, nil, SchedulerConfig{}).
		WithClock(func() time.Time { return local }, noSleep)
	if got := s.Now(context.Background()); !got.Equal(local) {
		t.Errorf("expected local clock, got %s", got)
	}
}

// TestRunOneCyclePerSettlement 无交易时也要等过结算点，每个整点只拉取一次
func TestRunOneCyclePerSettlement(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	stopAt := start.Add(2 * time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{cur: start}
	sleep := func(ctx context.Context, d time.Duration) error {
		if err := clock.sleep(ctx, d); err != nil {
			return err
		}
		if !clock.cur.Before(stopAt) {
			cancel()
		}
		return ctx.Err()
	}

	f := newArbFixture(false)
	// 费率差太小，不交易
	src := &staticSource{name: "flat", quotes: []port.FundingQuote{
		{Ticker: "BTC", Venue: model.VenueOKX, Rate: 0.0001, NextFundingTime: start.Add(30 * time.Minute).UnixMilli()},
		{Ticker: "BTC", Venue: model.VenueBinance, Rate: 0.0001, NextFundingTime: start.Add(30 * time.Minute).UnixMilli()},
	}}
	rep := &recordingReporter{}
	s := NewFundingScheduler(
		NewSnapshotService(nil, nil, src),
		f.svc,
		NewPositionService(f.ledger),
		nil,
		rep,
		SchedulerConfig{Tickers: []string{"BTC"}},
	).WithClock(clock.now, sleep)

	if err := s.Run(ctx); err == nil {
		t.Fatal("Run should stop with the context error")
	}
	// 10:50 与 11:50 各一次，12:50 时 ctx 已取消
	if src.calls != 2 {
		t.Errorf("expected 2 fetches, got %d (clock %s)", src.calls, clock.cur.Format(time.TimeOnly))
	}
	if got := len(f.ledger.Decisions()); got != 2 {
		t.Errorf("expected 2 decisions, got %d", got)
	}
	if f.okx.orderCount() != 0 || f.bin.orderCount() != 0 {
		t.Errorf("no order expected")
	}
}
