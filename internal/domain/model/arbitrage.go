package model

// ========== Funding Models ==========

// FundingObservation 单个交易所的预测资金费率
type FundingObservation struct {
	Rate            float64 `json:"rate"`
	NextFundingTime int64   `json:"next_funding_time"` // unix ms
}

// FundingRecord 某个标的在一个决策周期内的资金费率快照
// Observations 中缺失的交易所即 "无数据"，与费率为 0 不同
type FundingRecord struct {
	Ticker       string                       `json:"ticker"`
	Observations map[Venue]FundingObservation `json:"observations"`
	FetchedAt    int64                        `json:"ts_ms"`
}

// NewFundingRecord 创建空快照
func NewFundingRecord(ticker string, fetchedAt int64) *FundingRecord {
	return &FundingRecord{
		Ticker:       ticker,
		Observations: make(map[Venue]FundingObservation),
		FetchedAt:    fetchedAt,
	}
}

// Set 写入一个交易所的观测值
func (r *FundingRecord) Set(v Venue, rate float64, nextFundingTime int64) {
	if r.Observations == nil {
		r.Observations = make(map[Venue]FundingObservation)
	}
	r.Observations[v] = FundingObservation{Rate: rate, NextFundingTime: nextFundingTime}
}

// Get 读取观测值，ok=false 表示该交易所没有数据
func (r *FundingRecord) Get(v Venue) (FundingObservation, bool) {
	if r == nil {
		return FundingObservation{}, false
	}
	obs, ok := r.Observations[v]
	return obs, ok
}

// FeeTable 交易所 -> 往返手续费率，启动时设置后只读
type FeeTable map[Venue]float64

// Fee 查询手续费
func (f FeeTable) Fee(v Venue) (float64, bool) {
	fee, ok := f[v]
	return fee, ok
}

// ========== Decision Models ==========

// LegDecision 单腿决策
type LegDecision struct {
	Venue Venue   `json:"venue"`
	Side  Side    `json:"side"`
	Rate  float64 `json:"rate"`
}

// ArbitrageDecision 套利决策，Trade=false 即 "no trade"
type ArbitrageDecision struct {
	ID              string      `json:"id"`
	Ticker          string      `json:"ticker"`
	Trade           bool        `json:"trade"`
	Arbitrage       LegDecision `json:"arbitrage"`
	Hedge           LegDecision `json:"hedge"`
	ExpectedNetRate float64     `json:"expected_net_rate"`
	FundingTime     int64       `json:"funding_time"`       // 目标结算时间 unix ms
	Excluded        []Venue     `json:"excluded,omitempty"` // 结算时间不一致而被排除的交易所
	Reason          string      `json:"reason,omitempty"`
	Timestamp       int64       `json:"ts_ms"`
}

// NoTrade 构造不交易决策
func NoTrade(ticker, reason string) ArbitrageDecision {
	return ArbitrageDecision{Ticker: ticker, Reason: reason}
}
