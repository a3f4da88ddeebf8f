package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/ratelimit"
)

// DefaultHTTPTimeout REST 请求超时
const DefaultHTTPTimeout = 10 * time.Second

// RestClient 各交易所共享的 REST 发送逻辑：限流、429 退避、错误分类
type RestClient struct {
	Venue   model.Venue
	BaseURL string
	HTTP    *http.Client
	Limiter *ratelimit.Window
}

// NewRestClient 创建 REST 客户端，limiter 为空时不限流
func NewRestClient(venue model.Venue, baseURL string, limiter *ratelimit.Window) *RestClient {
	return &RestClient{
		Venue:   venue,
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: DefaultHTTPTimeout},
		Limiter: limiter,
	}
}

// RequestBuilder 每次发送前重新构造请求（签名时间戳必须新鲜）
type RequestBuilder func(ctx context.Context) (*http.Request, error)

type noRetryKey struct{}

// WithoutNetworkRetry 标记请求在网络错误时不重发（下单：连接断开时委托可能已被接收）
func WithoutNetworkRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func networkRetryAllowed(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey{}).(bool)
	return !v
}

// Do 发送请求并返回响应体，非 2xx 转成 *service.VenueError，此时同时返回完整响应体
// 供各交易所解析错误码。网络错误按限流器配置的固定间隔重试，次数用完后返回最后一次错误
func (c *RestClient) Do(ctx context.Context, op string, build RequestBuilder) ([]byte, error) {
	var body []byte
	send := func() error {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		b, err := c.roundTrip(req, op)
		body = b
		return err
	}

	retries, backoff := c.Limiter.NetworkRetry()
	if !networkRetryAllowed(ctx) {
		retries = 0
	}

	var err error
	for attempt := 0; ; attempt++ {
		if c.Limiter != nil {
			err = c.Limiter.Do(ctx, send)
		} else {
			err = send()
		}
		if err == nil {
			return body, nil
		}
		if attempt >= retries || ctx.Err() != nil || !service.IsNetworkFailure(err) {
			return body, err
		}
		log.Warn().Err(err).
			Str("exchange", c.Venue.String()).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("network failure, retrying")
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, err
		case <-t.C:
		}
	}
}

func (c *RestClient) roundTrip(req *http.Request, op string) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, service.WrapTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, service.WrapTransport(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, service.NewVenueError(c.Venue.String(), resp.StatusCode, "", truncate(string(body), 256))
	}
	return body, nil
}

// Get 公共 GET 请求
func (c *RestClient) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, "GET "+path, func(ctx context.Context) (*http.Request, error) {
		endpoint, err := BuildQueryURL(c.BaseURL, path, params.Encode())
		if err != nil {
			return nil, err
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ========== WebSocket ==========

// RetryConfig WebSocket 连接重试配置
type RetryConfig struct {
	MaxRetries int           // 最大重试次数
	InitialDel time.Duration // 初始延迟
	MaxDelay   time.Duration // 最大延迟
}

// DefaultRetryConfig 默认重试配置
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 2,
	InitialDel: 200 * time.Millisecond,
	MaxDelay:   time.Second,
}

// WSHelper provides common WebSocket functionality
type WSHelper struct {
	URL     string
	Timeout time.Duration
	Retry   *RetryConfig // nil 使用 DefaultRetryConfig
}

// DialWS creates a WebSocket connection, retrying with exponential backoff until ctx expires
func (w *WSHelper) DialWS(ctx context.Context) (*websocket.Conn, error) {
	rc := DefaultRetryConfig
	if w.Retry != nil {
		rc = *w.Retry
	}

	var lastErr error
	delay := rc.InitialDel
	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Debug().
				Str("url", w.URL).
				Int("attempt", attempt).
				Int64("delay_ms", delay.Milliseconds()).
				Msg("retrying websocket connection")
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			// 指数退避，不超过最大延迟
			delay *= 2
			if delay > rc.MaxDelay {
				delay = rc.MaxDelay
			}
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("dial %s after %d retries: %w", w.URL, rc.MaxRetries, lastErr)
}

// QuoteParser 解析一条推送，ok=false 表示不是报价消息（订阅回执、心跳等）
type QuoteParser func(msg []byte) (quote model.VenueQuote, ok bool, err error)

// SampleOnce 连接、可选发送订阅消息，读到第一条报价后断开
func (w *WSHelper) SampleOnce(ctx context.Context, subscribe any, parse QuoteParser) (model.VenueQuote, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := w.DialWS(ctx)
	if err != nil {
		return model.VenueQuote{}, service.WrapTransport("ws dial", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	// ctx 取消时让阻塞的 ReadMessage 返回
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if subscribe != nil {
		if err := conn.WriteJSON(subscribe); err != nil {
			return model.VenueQuote{}, service.WrapTransport("ws subscribe", err)
		}
	}

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return model.VenueQuote{}, service.WrapTransport("ws read", ctx.Err())
			}
			return model.VenueQuote{}, service.WrapTransport("ws read", err)
		}
		q, ok, err := parse(BytesTrimSpace(b))
		if err != nil {
			return model.VenueQuote{}, err
		}
		if ok {
			if q.Ts == 0 {
				q.Ts = time.Now().UnixMilli()
			}
			return q, nil
		}
	}
}

// BytesTrimSpace trims whitespace from byte slice
func BytesTrimSpace(b []byte) []byte {
	i := 0
	j := len(b) - 1
	for i <= j && (b[i] == ' ' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	for j >= i && (b[j] == ' ' || b[j] == '\n' || b[j] == '\r' || b[j] == '\t') {
		j--
	}
	if i > j {
		return []byte{}
	}
	return b[i : j+1]
}

// ParseJSON safely parses JSON
func ParseJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// BuildQueryURL builds a URL with query parameters
func BuildQueryURL(base, path, query string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = path
	u.RawQuery = query
	return u.String(), nil
}
