package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/ratelimit"
)

// fakeInfo 按请求 type 返回固定响应
func fakeInfo(t *testing.T, responses map[string]string) *InfoClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		typ, _ := req["type"].(string)
		resp, ok := responses[typ]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return NewInfoClient(srv.URL, nil)
}

// fakeInfoURL 与 fakeInfo 相同，返回服务地址
func fakeInfoURL(t *testing.T, responses map[string]string) string {
	return fakeInfo(t, responses).rest.BaseURL
}

const predictedFundingsBody = `[
  ["BTC", [
    ["BinPerp", {"fundingRate": "0.0001", "nextFundingTime": 1733961600000}],
    ["HlPerp", {"fundingRate": "-0.00002", "nextFundingTime": 1733958000000, "fundingIntervalHours": 1}],
    ["BybitPerp", null]
  ]],
  ["ETH", [
    ["HlPerp", {"fundingRate": "0.0000125", "nextFundingTime": 1733958000000}]
  ]]
]`

// TestPredictedFundings null 条目跳过，只保留请求的标的
func TestPredictedFundings(t *testing.T) {
	info := fakeInfo(t, map[string]string{"predictedFundings": predictedFundingsBody})
	src := NewFundingSource(info)

	quotes, err := src.FetchFunding(context.Background(), []string{"BTC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d: %+v", len(quotes), quotes)
	}
	got := map[model.Venue]float64{}
	for _, q := range quotes {
		if q.Ticker != "BTC" {
			t.Errorf("unexpected ticker %s", q.Ticker)
		}
		got[q.Venue] = q.Rate
	}
	if got[model.VenueBinance] != 0.0001 || got[model.VenueHyperliquid] != -0.00002 {
		t.Errorf("rates mismatch: %v", got)
	}
	if _, ok := got[model.VenueBybit]; ok {
		t.Errorf("null bybit entry should be skipped")
	}
}

// TestL2Book 买一卖一与服务器时间
func TestL2Book(t *testing.T) {
	info := fakeInfo(t, map[string]string{
		"l2Book": `{"coin":"BTC","time":1700000000123,"levels":[[{"px":"50000.0","sz":"1.2","n":3}],[{"px":"50001.0","sz":"0.5","n":1}]]}`,
	})
	ctx := context.Background()

	q, err := info.L2Book(ctx, "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Bid != 50000 || q.Ask != 50001 || q.Last != 50000.5 {
		t.Errorf("quote mismatch: %+v", q)
	}

	ts, err := info.ServerTime(ctx)
	if err != nil || ts != 1700000000123 {
		t.Errorf("server time mismatch: %d %v", ts, err)
	}
}

// TestClearinghouseState 余额与带符号持仓
func TestClearinghouseState(t *testing.T) {
	info := fakeInfo(t, map[string]string{
		"clearinghouseState": `{"withdrawable":"1520.75","assetPositions":[{"position":{"coin":"ETH","szi":"-0.42","entryPx":"2501.3"}}]}`,
	})
	ctx := context.Background()

	bal, err := info.Withdrawable(ctx, "0xabc")
	if err != nil || bal != 1520.75 {
		t.Fatalf("balance mismatch: %v %v", bal, err)
	}

	pos, err := info.Position(ctx, "0xabc", "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Side() != model.SideShort || pos.AbsSize() != 0.42 || pos.EntryPrice != 2501.3 {
		t.Errorf("position mismatch: %+v", pos)
	}

	empty, err := info.Position(ctx, "0xabc", "BTC")
	if err != nil || empty.SignedSize != 0 {
		t.Errorf("expected flat BTC position, got %+v %v", empty, err)
	}
}

// TestOrderStatus 剩余数量推出成交量
func TestOrderStatus(t *testing.T) {
	info := fakeInfo(t, map[string]string{
		"orderStatus": `{"status":"order","order":{"order":{"coin":"BTC","limitPx":"50000.0","sz":"0.004","origSz":"0.010","oid":77},"status":"open"}}`,
	})

	fill, err := info.OrderStatus(context.Background(), "0xabc", 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.Status != model.OrderPartiallyFilled || fill.RequestedSize != 0.01 {
		t.Errorf("fill mismatch: %+v", fill)
	}
	if fill.FilledSize < 0.00599 || fill.FilledSize > 0.00601 {
		t.Errorf("filled size mismatch: %v", fill.FilledSize)
	}
}

// TestMapOrderStatus 状态映射
func TestMapOrderStatus(t *testing.T) {
	cases := []struct {
		status          string
		orig, remaining float64
		want            model.OrderStatus
	}{
		{"open", 1, 1, model.OrderPending},
		{"open", 1, 0.5, model.OrderPartiallyFilled},
		{"filled", 1, 0, model.OrderFilled},
		{"canceled", 1, 1, model.OrderCancelled},
		{"marginCanceled", 1, 1, model.OrderCancelled},
		{"rejected", 1, 1, model.OrderFailed},
	}
	for _, c := range cases {
		if got := mapOrderStatus(c.status, c.orig, c.remaining); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.status, c.want, got)
		}
	}
}

// TestTickSize 10^-(6-szDecimals)
func TestTickSize(t *testing.T) {
	if got := TickSize(5); got != 0.1 {
		t.Errorf("szDecimals 5: expected 0.1, got %v", got)
	}
	if got := TickSize(0); got != 0.000001 {
		t.Errorf("szDecimals 0: expected 1e-6, got %v", got)
	}
	if got := TickSize(7); got != 1 {
		t.Errorf("szDecimals 7: expected 1, got %v", got)
	}
}

// TestNormalizePrice 5 位有效数字
func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		px   float64
		sz   int
		want float64
	}{
		{50000.3, 5, 50000},
		{123456, 5, 123456},
		{2500.55, 4, 2500.6},
		{1.234567, 2, 1.2346},
		{0.0123456, 0, 0.01235},
	}
	for _, c := range cases {
		if got := NormalizePrice(c.px, c.sz); got != c.want {
			t.Errorf("NormalizePrice(%v, %d): expected %v, got %v", c.px, c.sz, c.want, got)
		}
	}
}

// TestAccountFromKey 未配置账户地址时由私钥推出
func TestAccountFromKey(t *testing.T) {
	// 公开的测试私钥
	c := NewExchangeClient(TestnetURL, "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", "", nil, nil)
	if c.Account() != "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23" {
		t.Errorf("derived account mismatch: %s", c.Account())
	}

	c = NewExchangeClient(TestnetURL, "", "0xdef", nil, nil)
	if c.Account() != "0xdef" {
		t.Errorf("explicit account should win: %s", c.Account())
	}
}

// TestInstrumentSpecThroughLimiter meta 经 /info 加载一次并计入限流窗口；未配置私钥不能下单
func TestInstrumentSpecThroughLimiter(t *testing.T) {
	url := fakeInfoURL(t, map[string]string{
		"meta": `{"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":40},{"name":"ETH","szDecimals":4,"maxLeverage":25}]}`,
	})
	limiter := ratelimit.New("HYPERLIQUID", ratelimit.Options{})
	info := NewInfoClient(url, limiter)
	c := NewExchangeClient(url, "", "0xdef", info, limiter)

	spec, err := c.InstrumentSpec(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("InstrumentSpec failed: %v", err)
	}
	if spec.QuantityPrecision != 4 || spec.MaxLeverage != 25 || spec.TickSize != TickSize(4) {
		t.Errorf("spec mismatch: %+v", spec)
	}
	if _, err := c.InstrumentSpec(context.Background(), "BTC"); err != nil {
		t.Fatalf("InstrumentSpec failed: %v", err)
	}
	if limiter.Len() != 1 {
		t.Errorf("meta should be fetched once through the limiter, window has %d", limiter.Len())
	}

	if _, err := c.PlaceOrder(context.Background(), model.OrderRequest{Symbol: "BTC", Side: model.SideLong, Price: 1, Size: 1}); !errors.Is(err, ErrNoSigner) {
		t.Errorf("expected ErrNoSigner, got %v", err)
	}
	if limiter.Len() != 1 {
		t.Errorf("no request should be sent without a signer, window has %d", limiter.Len())
	}

	// SDK 下单 / 撤单 / 杠杆请求同样计入窗口
	calls := 0
	if err := c.throttle(context.Background(), func() error { calls++; return nil }); err != nil {
		t.Fatalf("throttle failed: %v", err)
	}
	if calls != 1 || limiter.Len() != 2 {
		t.Errorf("throttled call not counted: calls=%d window=%d", calls, limiter.Len())
	}
}
