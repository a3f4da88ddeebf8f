package bybit

import (
	"context"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// FundingSource /v5/market/tickers 中的 fundingRate / nextFundingTime
type FundingSource struct {
	market  *MarketClient
	adapter *Adapter
}

func NewFundingSource(mgr *PerpetualManager, adapter *Adapter) *FundingSource {
	return &FundingSource{market: mgr.Market, adapter: adapter}
}

func (s *FundingSource) Name() string { return "bybit.tickers" }

// FetchFunding 单个标的失败只跳过该标的
func (s *FundingSource) FetchFunding(ctx context.Context, tickers []string) ([]port.FundingQuote, error) {
	out := make([]port.FundingQuote, 0, len(tickers))
	for _, t := range tickers {
		symbol := s.adapter.Symbol(t)
		rate, next, err := s.market.FundingRate(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("exchange", "BYBIT").Str("symbol", symbol).Msg("failed to get funding rate")
			continue
		}
		out = append(out, port.FundingQuote{
			Ticker:          t,
			Venue:           model.VenueBybit,
			Rate:            rate,
			NextFundingTime: next,
		})
	}
	return out, nil
}
