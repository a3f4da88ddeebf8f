package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fundarb/internal/domain/model"
)

// ErrCycleActive 该标的已有未平仓的周期
var ErrCycleActive = errors.New("cycle already active")

// ActiveCycle 一个未平仓的周期
type ActiveCycle struct {
	CycleID  string
	Ticker   string
	Arb      model.Venue
	Hedge    model.Venue
	OpenedAt int64 // Unix milliseconds
}

// CycleGuard 防止重复开仓：同一标的同时只允许一个周期，
// 同一个交易所合约也不能同时属于两个周期
type CycleGuard struct {
	mu sync.Mutex

	active map[string]*ActiveCycle // ticker -> cycle
	now    func() time.Time
}

func NewCycleGuard() *CycleGuard {
	return &CycleGuard{
		active: make(map[string]*ActiveCycle),
		now:    time.Now,
	}
}

// Acquire 登记周期；同一 cycleID 重复登记视为成功
func (g *CycleGuard) Acquire(ticker, cycleID string, arb, hedge model.Venue) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.active[ticker]; ok {
		if cur.CycleID == cycleID {
			return nil
		}
		return fmt.Errorf("%w: %s held by cycle %s (%s/%s)", ErrCycleActive, ticker, cur.CycleID, cur.Arb, cur.Hedge)
	}
	g.active[ticker] = &ActiveCycle{
		CycleID:  cycleID,
		Ticker:   ticker,
		Arb:      arb,
		Hedge:    hedge,
		OpenedAt: g.now().UnixMilli(),
	}
	return nil
}

// Release 只释放属于 cycleID 的登记
func (g *CycleGuard) Release(ticker, cycleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.active[ticker]; ok && cur.CycleID == cycleID {
		delete(g.active, ticker)
	}
}

// Active 查询标的当前的周期
func (g *CycleGuard) Active(ticker string) (ActiveCycle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.active[ticker]
	if !ok {
		return ActiveCycle{}, false
	}
	return *cur, true
}

// Snapshot 所有未平仓周期，按开仓时间排序
func (g *CycleGuard) Snapshot() []ActiveCycle {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]ActiveCycle, 0, len(g.active))
	for _, c := range g.active {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt != out[j].OpenedAt {
			return out[i].OpenedAt < out[j].OpenedAt
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}
