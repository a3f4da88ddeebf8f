package monitor

import (
	"strings"
	"testing"
	"time"

	"fundarb/internal/domain/model"
)

// TestRenderSnapshot 缺失数据显示 --，不是 0
func TestRenderSnapshot(t *testing.T) {
	rec := model.NewFundingRecord("BTC", 1)
	rec.Set(model.VenueBinance, 0.0001, 1)
	rec.Set(model.VenueHyperliquid, -0.0002, 1)

	got := NewFormatter(false).RenderSnapshot(rec)
	for _, want := range []string{"BTC", "BINANCE:+0.0100%", "HYPERLIQUID:-0.0200%", "OKX:--", "BYBIT:--"} {
		if !strings.Contains(got, want) {
			t.Errorf("snapshot %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "\033[") {
		t.Errorf("colorless formatter should not emit ansi codes: %q", got)
	}
}

// TestRenderDecision 交易 / 不交易两种输出
func TestRenderDecision(t *testing.T) {
	f := NewFormatter(false)
	d := model.ArbitrageDecision{
		Ticker:          "BTC",
		Trade:           true,
		Arbitrage:       model.LegDecision{Venue: model.VenueHyperliquid, Side: model.SideLong},
		Hedge:           model.LegDecision{Venue: model.VenueOKX, Side: model.SideShort},
		ExpectedNetRate: 0.0009,
		Excluded:        []model.Venue{model.VenueBybit},
	}
	got := f.RenderDecision(d)
	for _, want := range []string{"LONG HYPERLIQUID", "SHORT OKX", "net=+0.0900%", "excluded=BYBIT"} {
		if !strings.Contains(got, want) {
			t.Errorf("decision %q missing %q", got, want)
		}
	}

	got = f.RenderDecision(model.NoTrade("ETH", "no venue has funding data"))
	if !strings.Contains(got, "ETH no trade (no venue has funding data)") {
		t.Errorf("no trade line mismatch: %q", got)
	}
}

type lineSink struct{ lines []string }

func (s *lineSink) WriteSnapshot(ts time.Time, line string) error {
	s.lines = append(s.lines, line)
	return nil
}

func (s *lineSink) NewLine() error { return nil }

// TestReporterWritesLines 每次快照/决策写一行
func TestReporterWritesLines(t *testing.T) {
	sink := &lineSink{}
	r := NewReporter(sink, true)
	r.Snapshot(time.Now(), model.NewFundingRecord("BTC", 1))
	r.Snapshot(time.Now(), nil)
	r.Decision(time.Now(), model.NoTrade("BTC", ""))
	if len(sink.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(sink.lines))
	}
}
