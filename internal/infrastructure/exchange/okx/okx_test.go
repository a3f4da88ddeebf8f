package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
)

func newTestManager(t *testing.T, handler http.HandlerFunc) *PerpetualManager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPerpetualManager(NewCredentials("key", "secret", "pass"), srv.URL, "", true, nil)
}

// TestSign base64(HMAC(ts+method+path+body))
func TestSign(t *testing.T) {
	c := NewCredentials("key", "secret", "pass")
	ts := "2020-12-08T09:08:57.715Z"
	h := hmac.New(sha256.New, []byte("secret"))
	h.Write([]byte(ts + "GET" + "/api/v5/account/balance?ccy=USDT"))
	want := base64.StdEncoding.EncodeToString(h.Sum(nil))

	if got := c.Sign(ts, "GET", "/api/v5/account/balance?ccy=USDT", ""); got != want {
		t.Fatalf("signature mismatch: %s != %s", got, want)
	}
}

// TestSignedHeaders 签名头与模拟盘标记
func TestSignedHeaders(t *testing.T) {
	mgr := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		for _, h := range []string{"OK-ACCESS-KEY", "OK-ACCESS-SIGN", "OK-ACCESS-TIMESTAMP", "OK-ACCESS-PASSPHRASE"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		if r.Header.Get("x-simulated-trading") != "1" {
			t.Errorf("simulated header missing")
		}
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"totalEq":"100","details":[{"ccy":"USDT","availEq":"812.25","availBal":"800"}]}]}`))
	})

	bal, err := mgr.Account.GetBalance(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal != 812.25 {
		t.Errorf("balance mismatch: %v", bal)
	}
}

// TestBusinessError code != "0" 视为交易所拒绝
func TestBusinessError(t *testing.T) {
	mgr := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"1","msg":"Operation failed.","data":[{"ordId":"","sCode":"51008","sMsg":"Order failed. Insufficient margin."}]}`))
	})

	_, err := mgr.Order.PlaceOrder(context.Background(), model.OrderRequest{Symbol: "BTC-USDT-SWAP", Side: model.SideShort, Price: 1, Size: 1})
	var ve *service.VenueError
	if !errors.As(err, &ve) {
		t.Fatalf("expected venue error, got %v", err)
	}
	if ve.Code != "51008" {
		t.Errorf("expected sCode 51008, got %s", ve.Code)
	}
}

// TestLongErrorBody 非 2xx 响应体超过截断长度时仍能解析 code/msg
func TestLongErrorBody(t *testing.T) {
	msg := "Invalid request: " + strings.Repeat("x", 300)
	mgr := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"50014","msg":"` + msg + `","data":[]}`))
	})

	_, err := mgr.Order.PlaceOrder(context.Background(), model.OrderRequest{Symbol: "BTC-USDT-SWAP", Side: model.SideLong, Price: 1, Size: 1})
	var ve *service.VenueError
	if !errors.As(err, &ve) {
		t.Fatalf("expected venue error, got %v", err)
	}
	if ve.Status != http.StatusBadRequest || ve.Code != "50014" || ve.Msg != msg {
		t.Errorf("venue error not decorated: status=%d code=%q msg=%.40q", ve.Status, ve.Code, ve.Msg)
	}
}

// TestInstrumentSpec 张数制合约的 ContractSize
func TestInstrumentSpec(t *testing.T) {
	mgr := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","data":[{"instId":"BTC-USDT-SWAP","lotSz":"0.01","tickSz":"0.1","ctVal":"0.01","ctMult":"1","lever":"100"}]}`))
	})

	spec, err := mgr.Market.InstrumentSpec(context.Background(), "BTC-USDT-SWAP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.QuantityPrecision != 2 || spec.ContractSize != 0.01 || spec.TickSize != 0.1 || spec.MaxLeverage != 100 {
		t.Errorf("spec mismatch: %+v", spec)
	}
}

// TestOrderStatusAndPosition 订单与持仓解析
func TestOrderStatusAndPosition(t *testing.T) {
	mgr := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/trade/order":
			_, _ = w.Write([]byte(`{"code":"0","data":[{"ordId":"7","state":"filled","sz":"3","accFillSz":"3","avgPx":"2500.5"}]}`))
		case "/api/v5/account/positions":
			_, _ = w.Write([]byte(`{"code":"0","data":[{"instId":"ETH-USDT-SWAP","posSide":"net","pos":"-3","avgPx":"2500.5"}]}`))
		}
	})
	ctx := context.Background()

	fill, err := mgr.Order.GetOrderStatus(ctx, "ETH-USDT-SWAP", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.Status != model.OrderFilled || fill.FilledSize != 3 || fill.AvgPrice != 2500.5 {
		t.Errorf("fill mismatch: %+v", fill)
	}

	pos, err := mgr.Position.GetPosition(ctx, "ETH-USDT-SWAP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Side() != model.SideShort || pos.AbsSize() != 3 {
		t.Errorf("position mismatch: %+v", pos)
	}
}

// TestFundingSource fundingTime 作为下次结算时间
func TestFundingSource(t *testing.T) {
	mgr := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instId") != "BTC-USDT-SWAP" {
			t.Errorf("unexpected instId %s", r.URL.Query().Get("instId"))
		}
		_, _ = w.Write([]byte(`{"code":"0","data":[{"instId":"BTC-USDT-SWAP","fundingRate":"-0.0003","fundingTime":"1700000000000","nextFundingTime":"1700028800000"}]}`))
	})
	src := NewFundingSource(mgr, NewAdapter(mgr))

	quotes, err := src.FetchFunding(context.Background(), []string{"BTC"})
	if err != nil || len(quotes) != 1 {
		t.Fatalf("unexpected result: %v %v", quotes, err)
	}
	if quotes[0].Rate != -0.0003 || quotes[0].NextFundingTime != 1700000000000 || quotes[0].Venue != model.VenueOKX {
		t.Errorf("quote mismatch: %+v", quotes[0])
	}
}

// TestParseTicker 忽略订阅回执
func TestParseTicker(t *testing.T) {
	if _, ok, err := parseTicker([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"}}`)); ok || err != nil {
		t.Fatalf("subscribe ack should be skipped")
	}
	q, ok, err := parseTicker([]byte(`{"arg":{"channel":"tickers"},"data":[{"instId":"BTC-USDT-SWAP","last":"100","bidPx":"99.9","askPx":"100.1","ts":"12"}]}`))
	if err != nil || !ok {
		t.Fatalf("unexpected: %v %v", ok, err)
	}
	if q.Bid != 99.9 || q.Ask != 100.1 || q.Ts != 12 {
		t.Errorf("quote mismatch: %+v", q)
	}
}
