package service

import (
	"fmt"
	"math"
	"sort"

	"fundarb/internal/domain/model"
)

// DefaultFundingMultiplier 入场/出场成本摊到三次资金费收取
const DefaultFundingMultiplier = 3.0

// ArbitrageSelector 资金费率套利选择器 - 在扣除手续费后挑选最优的交易所组合
// 纯函数：不发请求、不写日志
type ArbitrageSelector struct {
	fees       model.FeeTable
	multiplier float64
}

// NewArbitrageSelector 创建选择器，multiplier<=0 时使用默认值 3
func NewArbitrageSelector(fees model.FeeTable, multiplier float64) *ArbitrageSelector {
	if multiplier <= 0 {
		multiplier = DefaultFundingMultiplier
	}
	return &ArbitrageSelector{fees: fees, multiplier: multiplier}
}

type candidate struct {
	venue model.Venue
	obs   model.FundingObservation
	fee   float64
}

// Select 对一个 FundingRecord 给出决策
func (s *ArbitrageSelector) Select(rec *model.FundingRecord) model.ArbitrageDecision {
	if rec == nil {
		return model.NoTrade("", "empty funding record")
	}

	all := s.candidates(rec)
	if len(all) == 0 {
		return s.noTrade(rec, "no venue has funding data")
	}

	// 1. 目标结算时间 = 最早的下次结算时间
	target := all[0].obs.NextFundingTime
	for _, c := range all[1:] {
		if c.obs.NextFundingTime < target {
			target = c.obs.NextFundingTime
		}
	}

	// 2. 只保留结算时间完全一致的交易所
	var subset []candidate
	var excluded []model.Venue
	for _, c := range all {
		if c.obs.NextFundingTime == target {
			subset = append(subset, c)
		} else {
			excluded = append(excluded, c.venue)
		}
	}

	var d model.ArbitrageDecision
	switch len(subset) {
	case 0:
		d = s.noTrade(rec, "no venue at target funding time")
	case 1:
		d = s.selectSingle(rec, subset[0], all)
	default:
		d = s.selectPair(rec, subset)
	}
	d.FundingTime = target
	d.Excluded = excluded
	return d
}

// candidates 有数据且有手续费配置的交易所，按代码字典序
func (s *ArbitrageSelector) candidates(rec *model.FundingRecord) []candidate {
	venues := make([]model.Venue, 0, len(rec.Observations))
	for v := range rec.Observations {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i] < venues[j] })

	out := make([]candidate, 0, len(venues))
	for _, v := range venues {
		fee, ok := s.fees.Fee(v)
		if !ok {
			continue
		}
		out = append(out, candidate{venue: v, obs: rec.Observations[v], fee: fee})
	}
	return out
}

// selectSingle 只有一个交易所在目标结算时间：对冲方取手续费最低的其它交易所
func (s *ArbitrageSelector) selectSingle(rec *model.FundingRecord, v candidate, all []candidate) model.ArbitrageDecision {
	var hedge *candidate
	for i := range all {
		c := all[i]
		if c.venue == v.venue {
			continue
		}
		if hedge == nil || c.fee < hedge.fee {
			hedge = &all[i]
		}
	}
	if hedge == nil {
		return s.noTrade(rec, fmt.Sprintf("%s: %s has no hedge venue", ErrStaleData, v.venue))
	}

	net := s.multiplier*math.Abs(v.obs.Rate) - v.fee - hedge.fee
	if net <= 0 {
		return s.noTrade(rec, fmt.Sprintf("net rate %.6f <= 0", net))
	}

	side := model.SideLong
	if v.obs.Rate > 0 {
		side = model.SideShort
	}
	return s.decision(rec, &v, hedge, side, net)
}

// selectPair 多个交易所：枚举所有无序对，净收益最大者胜出，相等时保留先出现的
func (s *ArbitrageSelector) selectPair(rec *model.FundingRecord, subset []candidate) model.ArbitrageDecision {
	bestNet := math.Inf(-1)
	bi, bj := -1, -1
	for i := 0; i < len(subset); i++ {
		for j := i + 1; j < len(subset); j++ {
			net := PairNet(subset[i].obs.Rate, subset[j].obs.Rate, subset[i].fee, subset[j].fee, s.multiplier)
			if net > bestNet {
				bestNet, bi, bj = net, i, j
			}
		}
	}
	if bestNet <= 0 {
		return s.noTrade(rec, fmt.Sprintf("best pair net rate %.6f <= 0", bestNet))
	}

	arb, hedge := assignLegs(subset[bi], subset[bj])
	side := model.SideShort
	if arb.obs.Rate < 0 {
		side = model.SideLong
	}
	return s.decision(rec, &arb, &hedge, side, bestNet)
}

// assignLegs 同号取 |rate| 较大者为套利方；异号取负费率一方为套利方
func assignLegs(a, b candidate) (arb, hedge candidate) {
	if a.obs.Rate*b.obs.Rate < 0 {
		if a.obs.Rate < 0 {
			return a, b
		}
		return b, a
	}
	if math.Abs(b.obs.Rate) > math.Abs(a.obs.Rate) {
		return b, a
	}
	return a, b
}

// PairNet 一对交易所的预期净收益
func PairNet(ri, rj, fi, fj, multiplier float64) float64 {
	return multiplier*math.Abs(ri-rj) - fi - fj
}

func (s *ArbitrageSelector) decision(rec *model.FundingRecord, arb, hedge *candidate, side model.Side, net float64) model.ArbitrageDecision {
	return model.ArbitrageDecision{
		Ticker: rec.Ticker,
		Trade:  true,
		Arbitrage: model.LegDecision{
			Venue: arb.venue,
			Side:  side,
			Rate:  arb.obs.Rate,
		},
		Hedge: model.LegDecision{
			Venue: hedge.venue,
			Side:  side.Opposite(),
			Rate:  hedge.obs.Rate,
		},
		ExpectedNetRate: net,
		Timestamp:       rec.FetchedAt,
	}
}

func (s *ArbitrageSelector) noTrade(rec *model.FundingRecord, reason string) model.ArbitrageDecision {
	d := model.NoTrade(rec.Ticker, reason)
	d.Timestamp = rec.FetchedAt
	return d
}
