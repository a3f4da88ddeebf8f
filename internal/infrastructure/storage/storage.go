package storage

import (
	"context"
	"sort"
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// InMemoryLedger 未启用任何数据库时的账本，也用于 dry-run 和测试
type InMemoryLedger struct {
	mu        sync.Mutex
	decisions []*model.ArbitrageDecision
	attempts  []model.OrderAttempt
	positions map[string]*model.Position
}

// NewInMemoryLedger creates a new in-memory ledger
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{positions: make(map[string]*model.Position)}
}

func (l *InMemoryLedger) SaveDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *d
	l.decisions = append(l.decisions, &cp)
	return nil
}

func (l *InMemoryLedger) RecordAttempt(ctx context.Context, a model.OrderAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
	return nil
}

func (l *InMemoryLedger) SavePosition(ctx context.Context, p *model.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *p
	l.positions[p.ID] = &cp
	return nil
}

func (l *InMemoryLedger) UpdatePosition(ctx context.Context, p *model.Position) error {
	return l.SavePosition(ctx, p)
}

func (l *InMemoryLedger) ListOpenPositions(ctx context.Context) ([]*model.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.Position
	for _, p := range l.positions {
		if p.Status == model.PositionOpen {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt != out[j].OpenedAt {
			return out[i].OpenedAt < out[j].OpenedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Decisions 已保存的决策（副本）
func (l *InMemoryLedger) Decisions() []model.ArbitrageDecision {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ArbitrageDecision, 0, len(l.decisions))
	for _, d := range l.decisions {
		out = append(out, *d)
	}
	return out
}

// Attempts 已记录的下单尝试
func (l *InMemoryLedger) Attempts() []model.OrderAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.OrderAttempt(nil), l.attempts...)
}

// Position 按 ID 查询
func (l *InMemoryLedger) Position(id string) (model.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[id]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

func (l *InMemoryLedger) Close() error { return nil }

// NopPublisher 未启用 redis 时使用
type NopPublisher struct{}

func (NopPublisher) PublishDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	return nil
}

func (NopPublisher) CacheFunding(ctx context.Context, rec *model.FundingRecord) error { return nil }

func (NopPublisher) Close() error { return nil }

var (
	_ port.Ledger            = (*InMemoryLedger)(nil)
	_ port.DecisionPublisher = NopPublisher{}
)
