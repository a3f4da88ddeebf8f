package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// envelope Bybit V5 统一响应
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// signedJSONRequest 发送带 JSON payload 的签名请求
func (c *APIClient) signedJSONRequest(ctx context.Context, method, path string, payload interface{}) (*envelope, error) {
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
	return unwrap(raw, err)
}

// signedQueryRequest 发送带 query 的签名请求
func (c *APIClient) signedQueryRequest(ctx context.Context, method, path string, params url.Values) (*envelope, error) {
	query := params.Encode()

	raw, err := c.rest.Do(ctx, method+" "+path, func(ctx context.Context) (*http.Request, error) {
		endpoint, err := exchange.BuildQueryURL(c.rest.BaseURL, path, query)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.sign(req, path, query)
		return req, nil
	})
	return unwrap(raw, err)
}

// publicRequest 公共接口
func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) (*envelope, error) {
	raw, err := c.rest.Get(ctx, path, params)
	return unwrap(raw, err)
}

func (c *APIClient) sign(req *http.Request, path, payload string) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req.Header.Set("X-BAPI-API-KEY", c.credentials.APIKey())
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.credentials.Sign(timestamp, req.Method, path, payload))
}

// unwrap retCode != 0 视为交易所拒绝。非 2xx 时从完整响应体取 retCode/retMsg
func unwrap(raw []byte, err error) (*envelope, error) {
	if err != nil {
		var ve *service.VenueError
		if errors.As(err, &ve) {
			var e envelope
			if json.Unmarshal(raw, &e) == nil && e.RetCode != 0 {
				ve.Code, ve.Msg = strconv.Itoa(e.RetCode), e.RetMsg
			}
		}
		return nil, err
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("bybit: parse response: %w", err)
	}
	if e.RetCode != 0 {
		return &e, service.NewVenueError("BYBIT", http.StatusOK, strconv.Itoa(e.RetCode), e.RetMsg)
	}
	return &e, nil
}

// listResult result.list
func listResult[T any](e *envelope) ([]T, error) {
	var r struct {
		List []T `json:"list"`
	}
	if err := json.Unmarshal(e.Result, &r); err != nil {
		return nil, fmt.Errorf("bybit: parse result: %w", err)
	}
	return r.List, nil
}
