package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// PositionService 从账本恢复未平仓的周期（进程重启后继续平仓）
type PositionService struct {
	ledger port.Ledger
}

func NewPositionService(ledger port.Ledger) *PositionService {
	return &PositionService{ledger: ledger}
}

// OpenCycles 按 cycle 分组未平仓持仓；缺少套利方的周期无法按顺序平仓，只记录告警
func (s *PositionService) OpenCycles(ctx context.Context) ([]*Cycle, error) {
	positions, err := s.ledger.ListOpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Cycle)
	for _, p := range positions {
		c, ok := byID[p.CycleID]
		if !ok {
			c = &Cycle{ID: p.CycleID, Decision: model.ArbitrageDecision{Ticker: p.Ticker, Trade: true}}
			byID[p.CycleID] = c
		}
		switch p.Role {
		case model.RoleArbitrage:
			c.Arb = p
			c.Decision.Arbitrage = model.LegDecision{Venue: p.Venue, Side: p.Side}
		case model.RoleHedge:
			c.Hedge = p
			c.Decision.Hedge = model.LegDecision{Venue: p.Venue, Side: p.Side}
		}
	}

	out := make([]*Cycle, 0, len(byID))
	for _, c := range byID {
		if c.Arb == nil {
			ev := log.Warn().
				Str("cycle", c.ID).
				Str("symbol", c.Decision.Ticker)
			if c.Hedge != nil {
				ev = ev.Str("exchange", c.Hedge.Venue.String())
			}
			ev.Msg("open position without arbitrage leg, close manually")
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Arb.OpenedAt < out[j].Arb.OpenedAt })
	return out, nil
}
