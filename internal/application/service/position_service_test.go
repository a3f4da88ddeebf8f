package service

import (
	"context"
	"testing"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

// TestOpenCyclesGroupsByCycle 按 cycle 分组，跳过孤立的对冲仓位和未知角色的记录
func TestOpenCyclesGroupsByCycle(t *testing.T) {
	ledger := storage.NewInMemoryLedger()
	ctx := context.Background()
	save := func(p model.Position) {
		if err := ledger.SavePosition(ctx, &p); err != nil {
			t.Fatalf("SavePosition failed: %v", err)
		}
	}
	save(model.Position{ID: "a1", CycleID: "c1", Ticker: "BTC", Venue: model.VenueOKX, Role: model.RoleArbitrage, Side: model.SideLong, Status: model.PositionOpen, OpenedAt: 2})
	save(model.Position{ID: "h1", CycleID: "c1", Ticker: "BTC", Venue: model.VenueBinance, Role: model.RoleHedge, Side: model.SideShort, Status: model.PositionOpen, OpenedAt: 2})
	save(model.Position{ID: "a0", CycleID: "c0", Ticker: "ETH", Venue: model.VenueBybit, Role: model.RoleArbitrage, Side: model.SideShort, Status: model.PositionOpen, OpenedAt: 1})
	save(model.Position{ID: "h9", CycleID: "c9", Ticker: "SOL", Venue: model.VenueBybit, Role: model.RoleHedge, Side: model.SideShort, Status: model.PositionOpen, OpenedAt: 3})
	// 未知角色的记录两条腿都是 nil
	save(model.Position{ID: "u", CycleID: "c7", Ticker: "BTC", Venue: model.VenueOKX, Role: model.Role(9), Status: model.PositionOpen, OpenedAt: 4})
	save(model.Position{ID: "x", CycleID: "c2", Ticker: "BTC", Venue: model.VenueOKX, Role: model.RoleArbitrage, Status: model.PositionClosed})

	cycles, err := NewPositionService(ledger).OpenCycles(ctx)
	if err != nil {
		t.Fatalf("OpenCycles failed: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(cycles))
	}
	if cycles[0].ID != "c0" || cycles[0].Hedge != nil {
		t.Errorf("first cycle mismatch: %+v", cycles[0])
	}
	c := cycles[1]
	if c.ID != "c1" || c.Arb.ID != "a1" || c.Hedge == nil || c.Hedge.ID != "h1" {
		t.Errorf("second cycle mismatch: %+v", c)
	}
	if c.Decision.Hedge.Venue != model.VenueBinance {
		t.Errorf("hedge venue mismatch: %s", c.Decision.Hedge.Venue)
	}
}
