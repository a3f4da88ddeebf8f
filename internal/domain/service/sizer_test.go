package service

import (
	"errors"
	"testing"

	"fundarb/internal/domain/model"
)

// TestSizeFor 保证金 × 杠杆 / 价格
func TestSizeFor(t *testing.T) {
	size, err := SizeFor(100, 10, 50000, 3)
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if size != 0.02 {
		t.Errorf("expected 0.02, got %v", size)
	}

	// 四舍五入到精度
	size, err = SizeFor(100, 1, 3, 2)
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if size != 33.33 {
		t.Errorf("expected 33.33, got %v", size)
	}
}

// TestSizeForErrors 精度/价格非法、数量过小
func TestSizeForErrors(t *testing.T) {
	if _, err := SizeFor(100, 10, 50000, -1); !errors.Is(err, ErrInvalidPrecision) {
		t.Errorf("expected ErrInvalidPrecision, got %v", err)
	}
	if _, err := SizeFor(100, 10, 0, 3); !errors.Is(err, ErrInvalidPrecision) {
		t.Errorf("expected ErrInvalidPrecision for zero price, got %v", err)
	}
	_, err := SizeFor(1, 1, 50000, 3)
	if !errors.Is(err, ErrSizeTooSmall) {
		t.Errorf("expected ErrSizeTooSmall, got %v", err)
	}
	if !errors.Is(err, ErrSizing) {
		t.Errorf("size errors should be sizing errors: %v", err)
	}
}

// TestQuantizeIdempotent 取整后再取整结果不变
func TestQuantizeIdempotent(t *testing.T) {
	for _, raw := range []float64{0.123456, 1.0005, 42.42424242, 7} {
		for prec := 0; prec <= 4; prec++ {
			once, err := Quantize(raw, prec)
			if err != nil {
				continue
			}
			twice, err := Quantize(once, prec)
			if err != nil {
				t.Fatalf("re-quantize %v at %d failed: %v", once, prec, err)
			}
			if once != twice {
				t.Errorf("quantize not idempotent: %v -> %v -> %v (prec %d)", raw, once, twice, prec)
			}
		}
	}
}

// TestEffectiveLeverage 取配置值与交易所上限的较小者
func TestEffectiveLeverage(t *testing.T) {
	s := NewPositionSizer(0.05, 20)
	if got := s.EffectiveLeverage(10); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if got := s.EffectiveLeverage(50); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	if got := s.EffectiveLeverage(0); got != 20 {
		t.Errorf("unknown cap should keep configured value, got %d", got)
	}
	if got := NewPositionSizer(0.05, 0).EffectiveLeverage(0); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

// TestSizeWithContracts 张数制交易所按合约面值换算
func TestSizeWithContracts(t *testing.T) {
	s := NewPositionSizer(0.1, 10)
	spec := model.InstrumentSpec{Symbol: "BTC-USDT-SWAP", QuantityPrecision: 0, ContractSize: 0.01, MaxLeverage: 100}

	size, lev, err := s.Size(1000, spec, 50000)
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if lev != 10 {
		t.Errorf("expected leverage 10, got %d", lev)
	}
	if size != 2 {
		t.Errorf("expected 2 contracts, got %v", size)
	}
}

// TestConvertSize 币数量 -> 张数
func TestConvertSize(t *testing.T) {
	from := model.InstrumentSpec{QuantityPrecision: 3, ContractSize: 1}
	to := model.InstrumentSpec{QuantityPrecision: 0, ContractSize: 0.01}

	got, err := ConvertSize(0.02, from, to)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if got != 2 {
		t.Errorf("expected 2, got %v", got)
	}

	back, err := ConvertSize(got, to, from)
	if err != nil {
		t.Fatalf("convert back failed: %v", err)
	}
	if back != 0.02 {
		t.Errorf("expected 0.02, got %v", back)
	}
}

// TestPrecisionFromStep 步长 -> 小数位
func TestPrecisionFromStep(t *testing.T) {
	cases := map[string]int{
		"0.001":  3,
		"0.0010": 3,
		"0.5":    1,
		"1":      0,
		"10":     0,
		"":       -1,
		"abc":    -1,
		"0":      -1,
	}
	for in, want := range cases {
		if got := PrecisionFromStep(in); got != want {
			t.Errorf("PrecisionFromStep(%q) = %d, want %d", in, got, want)
		}
	}
}
