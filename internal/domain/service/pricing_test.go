package service

import (
	"testing"

	"fundarb/internal/domain/model"
)

func TestBiasedPrice(t *testing.T) {
	if got := BiasedPrice(100, 0.01, DefaultPriceBiasTicks, model.SideLong); !approx(got, 99.8) {
		t.Errorf("buy price expected 99.8, got %v", got)
	}
	if got := BiasedPrice(100, 0.01, DefaultPriceBiasTicks, model.SideShort); !approx(got, 100.2) {
		t.Errorf("sell price expected 100.2, got %v", got)
	}
	if got := BiasedPrice(100, 0, 20, model.SideLong); got != 100 {
		t.Errorf("zero tick should return reference, got %v", got)
	}
}

func TestRoundToTick(t *testing.T) {
	if got := RoundToTick(100.123, 0.05); !approx(got, 100.1) {
		t.Errorf("expected 100.1, got %v", got)
	}
	if got := RoundToTick(0.123456, 0.0001); !approx(got, 0.1235) {
		t.Errorf("expected 0.1235, got %v", got)
	}
	if got := RoundToTick(3.3, 0); got != 3.3 {
		t.Errorf("zero tick should be no-op, got %v", got)
	}
}
