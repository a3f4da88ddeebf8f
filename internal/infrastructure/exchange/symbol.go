package exchange

import (
	"strings"
)

// SymbolConverter 符号转换接口
type SymbolConverter interface {
	// Symbol2Coin 将交易对转换为币种
	// 例: BTCUSDT -> BTC, BTC-USDT-SWAP -> BTC
	Symbol2Coin(symbol string) string

	// Coin2Symbol 将币种转换为交易对
	// 例: BTC -> BTCUSDT
	Coin2Symbol(coin string) string

	// SymbolSuffix 返回符号后缀
	// 例: USDT, -USDT-SWAP, Hyperliquid 为空
	SymbolSuffix() string
}

// CommonSymbolConverter 通用符号转换器
type CommonSymbolConverter struct {
	suffix string
}

// NewCommonSymbolConverter 创建通用符号转换器
func NewCommonSymbolConverter(suffix string) *CommonSymbolConverter {
	return &CommonSymbolConverter{suffix: strings.ToUpper(strings.TrimSpace(suffix))}
}

// SymbolSuffix 返回符号后缀
func (c *CommonSymbolConverter) SymbolSuffix() string {
	return c.suffix
}

// Symbol2Coin 将交易对转换为币种
func (c *CommonSymbolConverter) Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ""
	}
	return strings.TrimSuffix(sym, c.suffix)
}

// Coin2Symbol 将币种转换为交易对
// 例: BTC -> BTCUSDT, BTCUSDT -> BTCUSDT
func (c *CommonSymbolConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}

	// 如果已经包含后缀，直接返回
	if strings.HasSuffix(coin, c.suffix) {
		return coin
	}
	return coin + c.suffix
}
