package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// envelope OKX 统一响应 {"code":"0","msg":"","data":[...]}
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// signedJSONRequest 发送带 JSON payload 的签名请求
func (c *APIClient) signedJSONRequest(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	raw, err := c.rest.Do(ctx, method+" "+path, func(ctx context.Context) (*http.Request, error) {
		endpoint, err := exchange.BuildQueryURL(c.rest.BaseURL, path, "")
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.sign(req, path, string(body))
		return req, nil
	})
	return c.unwrap(raw, err)
}

// signedQueryRequest 发送带 query 的签名请求，requestPath 包含 ?query
func (c *APIClient) signedQueryRequest(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	query := params.Encode()
	requestPath := path
	if query != "" {
		requestPath += "?" + query
	}

	raw, err := c.rest.Do(ctx, method+" "+path, func(ctx context.Context) (*http.Request, error) {
		endpoint, err := exchange.BuildQueryURL(c.rest.BaseURL, path, query)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.sign(req, requestPath, "")
		return req, nil
	})
	return c.unwrap(raw, err)
}

// publicRequest 公共接口
func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	raw, err := c.rest.Get(ctx, path, params)
	return c.unwrap(raw, err)
}

func (c *APIClient) sign(req *http.Request, requestPath, body string) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	req.Header.Set("OK-ACCESS-KEY", c.credentials.APIKey())
	req.Header.Set("OK-ACCESS-SIGN", c.credentials.Sign(timestamp, req.Method, requestPath, body))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.credentials.Passphrase())
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}
}

// unwrap 解出 data，code != "0" 视为交易所拒绝。非 2xx 时从完整响应体取 code/msg
func (c *APIClient) unwrap(raw []byte, err error) (json.RawMessage, error) {
	if err != nil {
		var ve *service.VenueError
		if !errors.As(err, &ve) {
			return nil, err
		}
		var e envelope
		if json.Unmarshal(raw, &e) == nil && e.Code != "" {
			ve.Code, ve.Msg = e.Code, e.Msg
			return e.Data, err
		}
		return nil, err
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("okx: parse response: %w", err)
	}
	if e.Code != "0" {
		return e.Data, service.NewVenueError("OKX", http.StatusOK, e.Code, e.Msg)
	}
	return e.Data, nil
}

// orderAck 下单 / 撤单回执，单条的 sCode 才是真正结果
type orderAck struct {
	OrdID string `json:"ordId"`
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

// ackFromData 批量接口 code=1 时 data 中带具体原因
func ackFromData(data json.RawMessage, err error) (orderAck, error) {
	var acks []orderAck
	_ = json.Unmarshal(data, &acks)
	if len(acks) > 0 && acks[0].SCode != "" && acks[0].SCode != "0" {
		return acks[0], service.NewVenueError("OKX", http.StatusOK, acks[0].SCode, acks[0].SMsg)
	}
	if err != nil {
		return orderAck{}, err
	}
	if len(acks) == 0 {
		return orderAck{}, fmt.Errorf("okx: empty order ack")
	}
	return acks[0], nil
}
