package port

import (
	"context"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
)

// VenueAdapter 单个交易所的统一能力，四个交易所各实现一份
type VenueAdapter interface {
	service.OrderVenue

	// Symbol 标的 -> 交易所合约代码，例如 BTC -> BTCUSDT / BTC-USDT-SWAP
	Symbol(ticker string) string

	// ServerTime 交易所时间 (unix ms)，失败返回 ErrClockUnavailable
	ServerTime(ctx context.Context) (int64, error)

	// QueryBalance 可用保证金，币种不存在时返回 ErrBalanceUnavailable
	QueryBalance(ctx context.Context, asset string) (float64, error)

	QueryInstrumentSpec(ctx context.Context, symbol string) (model.InstrumentSpec, error)
	AdjustLeverage(ctx context.Context, symbol string, leverage int) error
}

// FundingQuote 一条预测资金费率
type FundingQuote struct {
	Ticker          string
	Venue           model.Venue
	Rate            float64
	NextFundingTime int64
}

// FundingSource 资金费率数据源
type FundingSource interface {
	Name() string
	FetchFunding(ctx context.Context, tickers []string) ([]FundingQuote, error)
}

// Credentials 交易所凭证
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
	PrivateKey string // Hyperliquid 钱包私钥
	Account    string // Hyperliquid 主账户地址
}

// CredentialProvider 凭证查询
type CredentialProvider interface {
	Credentials(v model.Venue) (Credentials, error)
}

// InstrumentIndex 合约规格只读索引
type InstrumentIndex interface {
	Spec(ctx context.Context, venue model.Venue, symbol string) (model.InstrumentSpec, error)
}
