package service

import (
	"math"

	"fundarb/internal/domain/model"
)

// HedgeReconciler 对冲方平仓价格计算
type HedgeReconciler struct{}

// NeutralPrice hedge_price = arb_close + hedge_open - arb_open
// 在该价格平掉对冲方，价格盈亏正好抵消套利方
func (HedgeReconciler) NeutralPrice(arbOpen, arbClose, hedgeOpen float64) float64 {
	return arbClose + hedgeOpen - arbOpen
}

// TargetPrice 保守取价：对冲方平多(卖出)取较低者，平空(买入)取较高者
// hedgeSide 为对冲方持仓方向
func (r HedgeReconciler) TargetPrice(arbOpen, arbClose, hedgeOpen, market float64, hedgeSide model.Side) (target, neutral float64) {
	neutral = r.NeutralPrice(arbOpen, arbClose, hedgeOpen)
	if hedgeSide == model.SideLong {
		return math.Min(neutral, market), neutral
	}
	return math.Max(neutral, market), neutral
}
