package hyperliquid

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// venueNames predictedFundings 中的交易所名
var venueNames = map[string]model.Venue{
	"HlPerp":    model.VenueHyperliquid,
	"BinPerp":   model.VenueBinance,
	"BybitPerp": model.VenueBybit,
}

// FundingSource 一次请求拿到 Hyperliquid / Binance / Bybit 三家的预测费率
type FundingSource struct {
	info *InfoClient
}

func NewFundingSource(info *InfoClient) *FundingSource {
	return &FundingSource{info: info}
}

func (s *FundingSource) Name() string { return "hyperliquid.predictedFundings" }

func (s *FundingSource) FetchFunding(ctx context.Context, tickers []string) ([]port.FundingQuote, error) {
	all, err := s.info.PredictedFundings(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		want[strings.ToUpper(t)] = true
	}

	out := make([]port.FundingQuote, 0, len(tickers)*len(venueNames))
	for _, f := range all {
		if !want[f.Coin] {
			continue
		}
		v, ok := venueNames[f.Venue]
		if !ok {
			log.Debug().Str("venue", f.Venue).Str("coin", f.Coin).Msg("unknown predicted funding venue")
			continue
		}
		out = append(out, port.FundingQuote{
			Ticker:          f.Coin,
			Venue:           v,
			Rate:            f.Rate,
			NextFundingTime: f.NextFundingTime,
		})
	}
	return out, nil
}
