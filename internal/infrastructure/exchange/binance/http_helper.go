package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// apiError Binance 错误体 {"code":-2019,"msg":"Margin is insufficient."}
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// signedRequest is shared helper for signed REST calls.
func (c *APIClient) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	body, err := c.rest.Do(ctx, method+" "+path, func(ctx context.Context) (*http.Request, error) {
		p := url.Values{}
		for k, v := range params {
			p[k] = v
		}
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		p.Set("timestamp", timestamp)
		if p.Get("recvWindow") == "" {
			p.Set("recvWindow", "5000")
		}

		query := p.Encode()
		signature := c.credentials.Sign(timestamp, method, path, query)
		endpoint, err := exchange.BuildQueryURL(c.rest.BaseURL, path, query+"&signature="+signature)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", c.credentials.APIKey())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	return body, decorate(body, err)
}

// publicRequest 公共接口
func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, err := c.rest.Get(ctx, path, params)
	return body, decorate(body, err)
}

// decorate 把完整响应体里的 code/msg 填进 VenueError
func decorate(body []byte, err error) error {
	var ve *service.VenueError
	if !errors.As(err, &ve) {
		return err
	}
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Code != 0 {
		ve.Code = strconv.Itoa(e.Code)
		ve.Msg = e.Msg
	}
	return err
}
