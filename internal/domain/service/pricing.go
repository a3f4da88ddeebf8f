package service

import (
	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
)

// DefaultPriceBiasTicks 默认挂单偏移 20 个最小价格单位
const DefaultPriceBiasTicks = 20

// RoundToTick 价格对齐到最小变动单位
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	out, _ := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t).Float64()
	return out
}

// BiasedPrice 参考价按方向偏移 biasTicks 个 tick：正值时买单压低、卖单抬高
func BiasedPrice(ref, tick float64, biasTicks int, side model.Side) float64 {
	if tick <= 0 {
		return ref
	}
	offset := decimal.NewFromFloat(tick).Mul(decimal.NewFromInt(int64(biasTicks)))
	p := decimal.NewFromFloat(ref)
	if side.IsBuy() {
		p = p.Sub(offset)
	} else {
		p = p.Add(offset)
	}
	return RoundToTick(p.InexactFloat64(), tick)
}
