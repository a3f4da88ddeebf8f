package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// simVenue 下单即按委托价成交，并维护持仓
type simVenue struct {
	mu sync.Mutex

	venue    model.Venue
	quote    model.VenueQuote
	spec     model.InstrumentSpec
	balance  float64
	placeErr error
	timeErr  error

	// fillRatio > 0 时每笔委托只成交该比例
	fillRatio float64

	orders    map[string]model.OrderRequest
	placed    []model.OrderRequest
	leverage  map[string]int
	position  float64
	entry     float64
	specCalls int
}

func newSimVenue(v model.Venue, spec model.InstrumentSpec, balance float64) *simVenue {
	return &simVenue{
		venue:    v,
		spec:     spec,
		balance:  balance,
		orders:   make(map[string]model.OrderRequest),
		leverage: make(map[string]int),
	}
}

func (s *simVenue) setQuote(bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quote = model.VenueQuote{Venue: s.venue, Bid: bid, Ask: ask, Last: bid, TickSize: s.spec.TickSize}
}

func (s *simVenue) Venue() model.Venue { return s.venue }

func (s *simVenue) Symbol(ticker string) string { return ticker + "-" + s.venue.String() }

func (s *simVenue) ServerTime(ctx context.Context) (int64, error) {
	if s.timeErr != nil {
		return 0, s.timeErr
	}
	return time.Now().UnixMilli(), nil
}

func (s *simVenue) QueryBalance(ctx context.Context, asset string) (float64, error) {
	return s.balance, nil
}

func (s *simVenue) QueryInstrumentSpec(ctx context.Context, symbol string) (model.InstrumentSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specCalls++
	spec := s.spec
	spec.Symbol = symbol
	return spec, nil
}

func (s *simVenue) AdjustLeverage(ctx context.Context, symbol string, leverage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leverage[symbol] = leverage
	return nil
}

func (s *simVenue) SubscribePrice(ctx context.Context, symbol string) (model.VenueQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quote
	q.Symbol = symbol
	return q, nil
}

func (s *simVenue) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, req)
	if s.placeErr != nil {
		return "", s.placeErr
	}
	id := fmt.Sprintf("%s-%d", s.venue, len(s.placed))
	s.orders[id] = req
	s.position += req.Side.Sign() * s.filled(req.Size)
	if !req.ReduceOnly {
		s.entry = req.Price
	}
	return id, nil
}

func (s *simVenue) QueryOrderStatus(ctx context.Context, symbol, orderID string) (model.OrderFill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.orders[orderID]
	if !ok {
		return model.OrderFill{}, errors.New("order not found")
	}
	status := model.OrderFilled
	if s.fillRatio > 0 {
		status = model.OrderPartiallyFilled
	}
	return model.OrderFill{
		OrderID:       orderID,
		Status:        status,
		RequestedSize: req.Size,
		FilledSize:    s.filled(req.Size),
		AvgPrice:      req.Price,
	}, nil
}

func (s *simVenue) filled(size float64) float64 {
	if s.fillRatio > 0 {
		return size * s.fillRatio
	}
	return size
}

func (s *simVenue) setFillRatio(r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillRatio = r
}

func (s *simVenue) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (s *simVenue) QueryPosition(ctx context.Context, symbol string) (model.PositionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.PositionInfo{Symbol: symbol, EntryPrice: s.entry, SignedSize: s.position}, nil
}

func (s *simVenue) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.placed)
}

// staticSource 固定返回的资金费率源
type staticSource struct {
	name   string
	quotes []port.FundingQuote
	err    error
	calls  int
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) FetchFunding(ctx context.Context, tickers []string) ([]port.FundingQuote, error) {
	s.calls++
	return s.quotes, s.err
}

// recordingPublisher 记录发布的决策与缓存的快照
type recordingPublisher struct {
	mu        sync.Mutex
	decisions []model.ArbitrageDecision
	cached    []string
}

func (p *recordingPublisher) PublishDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, *d)
	return nil
}

func (p *recordingPublisher) CacheFunding(ctx context.Context, rec *model.FundingRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = append(p.cached, rec.Ticker)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var (
	_ port.VenueAdapter      = (*simVenue)(nil)
	_ port.FundingSource     = (*staticSource)(nil)
	_ port.DecisionPublisher = (*recordingPublisher)(nil)
)
