package service

import (
	"context"
	"fmt"
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

type specKey struct {
	venue  model.Venue
	symbol string
}

// InstrumentCache 合约规格缓存，第一次查询时从交易所拉取
type InstrumentCache struct {
	mu       sync.Mutex
	adapters map[model.Venue]port.VenueAdapter
	specs    map[specKey]model.InstrumentSpec
}

func NewInstrumentCache(adapters map[model.Venue]port.VenueAdapter) *InstrumentCache {
	return &InstrumentCache{
		adapters: adapters,
		specs:    make(map[specKey]model.InstrumentSpec),
	}
}

func (c *InstrumentCache) Spec(ctx context.Context, venue model.Venue, symbol string) (model.InstrumentSpec, error) {
	key := specKey{venue: venue, symbol: symbol}
	c.mu.Lock()
	spec, ok := c.specs[key]
	c.mu.Unlock()
	if ok {
		return spec, nil
	}

	ad, ok := c.adapters[venue]
	if !ok {
		return model.InstrumentSpec{}, fmt.Errorf("exchange %s not enabled", venue)
	}
	spec, err := ad.QueryInstrumentSpec(ctx, symbol)
	if err != nil {
		return spec, fmt.Errorf("instrument %s %s: %w", venue, symbol, err)
	}

	c.mu.Lock()
	c.specs[key] = spec
	c.mu.Unlock()
	return spec, nil
}

// Invalidate 清空缓存，下次查询重新拉取
func (c *InstrumentCache) Invalidate() {
	c.mu.Lock()
	c.specs = make(map[specKey]model.InstrumentSpec)
	c.mu.Unlock()
}

var _ port.InstrumentIndex = (*InstrumentCache)(nil)
