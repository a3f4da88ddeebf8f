package service

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
)

// PositionSizer 仓位计算器 - 保证金 × 杠杆 / 价格，按交易所数量精度取整
type PositionSizer struct {
	RiskFraction float64 // 每次使用的权益比例，例如 0.01 - 0.05
	Leverage     int     // 配置杠杆，实际取 min(配置, 交易所上限)
}

// NewPositionSizer 创建仓位计算器
func NewPositionSizer(riskFraction float64, leverage int) *PositionSizer {
	return &PositionSizer{RiskFraction: riskFraction, Leverage: leverage}
}

// EffectiveLeverage min(配置杠杆, 交易所最大杠杆)，交易所未知上限时只用配置值
func (s *PositionSizer) EffectiveLeverage(venueMax int) int {
	lev := s.Leverage
	if lev <= 0 {
		lev = 1
	}
	if venueMax > 0 && venueMax < lev {
		return venueMax
	}
	return lev
}

// Size 根据账户可用保证金计算下单数量（单位为交易所的下单单位）
func (s *PositionSizer) Size(available float64, spec model.InstrumentSpec, price float64) (size float64, leverage int, err error) {
	leverage = s.EffectiveLeverage(spec.MaxLeverage)
	capital := available * s.RiskFraction
	if spec.ContractSize > 0 {
		capital = capital / spec.ContractSize
	}
	size, err = SizeFor(capital, float64(leverage), price, spec.QuantityPrecision)
	return size, leverage, err
}

// SizeFor raw = capital × leverage / price，再按精度取整
func SizeFor(capital, leverage, price float64, precision int) (float64, error) {
	if precision < 0 {
		return 0, fmt.Errorf("%w: precision %d", ErrInvalidPrecision, precision)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: price %v", ErrInvalidPrecision, price)
	}
	return Quantize(capital*leverage/price, precision)
}

// Quantize 按小数位四舍五入，再经定点格式化去掉浮点误差
func Quantize(raw float64, precision int) (float64, error) {
	if precision < 0 {
		return 0, fmt.Errorf("%w: precision %d", ErrInvalidPrecision, precision)
	}
	d := decimal.NewFromFloat(raw).Round(int32(precision))
	out, err := strconv.ParseFloat(d.StringFixed(int32(precision)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrecision, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%w: raw %v at precision %d", ErrSizeTooSmall, raw, precision)
	}
	return out, nil
}

// ConvertSize 把一个交易所的数量换算成另一个交易所的下单单位（按币数量对齐）
func ConvertSize(size float64, from, to model.InstrumentSpec) (float64, error) {
	base := size
	if from.ContractSize > 0 {
		base = size * from.ContractSize
	}
	if to.ContractSize > 0 {
		base = base / to.ContractSize
	}
	return Quantize(base, to.QuantityPrecision)
}

// PrecisionFromStep 0.001 -> 3, 1 -> 0
func PrecisionFromStep(step string) int {
	d, err := decimal.NewFromString(step)
	if err != nil || d.Sign() <= 0 {
		return -1
	}
	exp := -d.Exponent()
	// "0.0010" 之类的尾随 0
	for exp > 0 && d.Shift(exp-1).IsInteger() {
		exp--
	}
	if exp < 0 {
		return 0
	}
	return int(exp)
}
