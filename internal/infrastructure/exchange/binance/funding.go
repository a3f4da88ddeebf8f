package binance

import (
	"context"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// FundingSource premiumIndex 资金费率，作为 Hyperliquid predictedFundings 的补充
type FundingSource struct {
	market  *MarketClient
	adapter *Adapter
}

// NewFundingSource 创建资金费率源
func NewFundingSource(mgr *PerpetualManager, adapter *Adapter) *FundingSource {
	return &FundingSource{market: mgr.Market, adapter: adapter}
}

func (s *FundingSource) Name() string { return "binance.premiumIndex" }

// FetchFunding 单个标的失败只跳过该标的
func (s *FundingSource) FetchFunding(ctx context.Context, tickers []string) ([]port.FundingQuote, error) {
	out := make([]port.FundingQuote, 0, len(tickers))
	for _, t := range tickers {
		symbol := s.adapter.Symbol(t)
		rate, next, err := s.market.FundingRate(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("exchange", "BINANCE").Str("symbol", symbol).Msg("failed to get funding rate")
			continue
		}
		out = append(out, port.FundingQuote{
			Ticker:          t,
			Venue:           model.VenueBinance,
			Rate:            rate,
			NextFundingTime: next,
		})
	}
	return out, nil
}
