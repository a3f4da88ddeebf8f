package okx

import (
	"context"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// FundingSource OKX 不在 Hyperliquid predictedFundings 里，必须单独拉取
type FundingSource struct {
	market  *MarketClient
	adapter *Adapter
}

func NewFundingSource(mgr *PerpetualManager, adapter *Adapter) *FundingSource {
	return &FundingSource{market: mgr.Market, adapter: adapter}
}

func (s *FundingSource) Name() string { return "okx.funding-rate" }

// FetchFunding 单个标的失败只跳过该标的
func (s *FundingSource) FetchFunding(ctx context.Context, tickers []string) ([]port.FundingQuote, error) {
	out := make([]port.FundingQuote, 0, len(tickers))
	for _, t := range tickers {
		instID := s.adapter.Symbol(t)
		rate, next, err := s.market.FundingRate(ctx, instID)
		if err != nil {
			log.Warn().Err(err).Str("exchange", "OKX").Str("symbol", instID).Msg("failed to get funding rate")
			continue
		}
		out = append(out, port.FundingQuote{
			Ticker:          t,
			Venue:           model.VenueOKX,
			Rate:            rate,
			NextFundingTime: next,
		})
	}
	return out, nil
}
