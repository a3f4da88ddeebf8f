package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"fundarb/internal/domain/model"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// TestSaveDecision 同一决策重复写入不报错
func TestSaveDecision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := &model.ArbitrageDecision{
		ID:              "d-1",
		Ticker:          "BTC",
		Trade:           true,
		Arbitrage:       model.LegDecision{Venue: model.VenueHyperliquid, Side: model.SideLong, Rate: -0.0002},
		Hedge:           model.LegDecision{Venue: model.VenueOKX, Side: model.SideShort, Rate: 0.0003},
		ExpectedNetRate: 0.0009,
		FundingTime:     1700000000000,
		Timestamp:       1699999940000,
	}
	if err := repo.SaveDecision(ctx, d); err != nil {
		t.Fatalf("SaveDecision failed: %v", err)
	}
	if err := repo.SaveDecision(ctx, d); err != nil {
		t.Fatalf("duplicate SaveDecision failed: %v", err)
	}

	var n int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 decision, got %d", n)
	}
}

// TestRecordAttempt 每次尝试一条记录，按顺序读回
func TestRecordAttempt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		a := model.OrderAttempt{
			CycleID:     "c-1",
			Venue:       model.VenueBinance,
			Symbol:      "BTCUSDT",
			Role:        model.RoleHedge,
			Side:        model.SideShort,
			Attempt:     i,
			TargetPrice: 50000 + float64(i),
			TargetSize:  0.01,
			OrderID:     "o",
			Status:      model.OrderCancelled,
			Timestamp:   int64(i),
		}
		if err := repo.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	got, err := repo.ListAttempts(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got))
	}
	if got[2].Attempt != 3 || got[2].Role != model.RoleHedge || got[2].Side != model.SideShort {
		t.Errorf("attempt mismatch: %+v", got[2])
	}
}

// TestPositionLifecycle 开仓、平仓后不再出现在未平仓列表
func TestPositionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &model.Position{
		ID:         "p-1",
		CycleID:    "c-1",
		Venue:      model.VenueBybit,
		Ticker:     "ETH",
		Symbol:     "ETHUSDT",
		Role:       model.RoleArbitrage,
		Side:       model.SideLong,
		Size:       0.5,
		EntryPrice: 2500,
		Leverage:   5,
		Status:     model.PositionOpen,
		OpenedAt:   1,
	}
	if err := repo.SavePosition(ctx, p); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}

	open, err := repo.ListOpenPositions(ctx)
	if err != nil {
		t.Fatalf("ListOpenPositions failed: %v", err)
	}
	if len(open) != 1 || open[0].Side != model.SideLong || open[0].Role != model.RoleArbitrage || open[0].Size != 0.5 {
		t.Fatalf("open positions mismatch: %+v", open)
	}

	p.Status = model.PositionClosed
	p.ClosePrice = 2510
	p.ClosedAt = 2
	if err := repo.UpdatePosition(ctx, p); err != nil {
		t.Fatalf("UpdatePosition failed: %v", err)
	}
	open, err = repo.ListOpenPositions(ctx)
	if err != nil {
		t.Fatalf("ListOpenPositions failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open positions, got %d", len(open))
	}
}
