package service

import (
	"testing"

	"fundarb/internal/domain/model"
)

// TestNeutralPrice 价格盈亏相抵
func TestNeutralPrice(t *testing.T) {
	var r HedgeReconciler
	if got := r.NeutralPrice(100, 99, 100); got != 99 {
		t.Errorf("expected 99, got %v", got)
	}
	// 套利方价格不变时，中性价等于对冲方开仓价
	if got := r.NeutralPrice(100, 100, 101.5); got != 101.5 {
		t.Errorf("expected 101.5, got %v", got)
	}
}

// TestTargetPriceClosingLong 对冲方平多（卖出）取较低者
func TestTargetPriceClosingLong(t *testing.T) {
	var r HedgeReconciler
	target, neutral := r.TargetPrice(100, 99, 100, 98, model.SideLong)
	if neutral != 99 {
		t.Errorf("neutral expected 99, got %v", neutral)
	}
	if target != 98 {
		t.Errorf("target expected 98, got %v", target)
	}

	target, _ = r.TargetPrice(100, 99, 100, 99.5, model.SideLong)
	if target != 99 {
		t.Errorf("target expected 99, got %v", target)
	}
}

// TestTargetPriceClosingShort 对冲方平空（买入）取较高者
func TestTargetPriceClosingShort(t *testing.T) {
	var r HedgeReconciler
	target, neutral := r.TargetPrice(100, 101, 100, 100.5, model.SideShort)
	if neutral != 101 {
		t.Errorf("neutral expected 101, got %v", neutral)
	}
	if target != 101 {
		t.Errorf("target expected 101, got %v", target)
	}

	target, _ = r.TargetPrice(100, 101, 100, 102, model.SideShort)
	if target != 102 {
		t.Errorf("target expected 102, got %v", target)
	}
}
