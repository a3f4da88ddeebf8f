package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/ratelimit"
)

const (
	MainnetRestURL = "https://fapi.binance.com"
	MainnetWsURL   = "wss://ws-fapi.binance.com/ws-fapi/v1"
	TestnetRestURL = "https://testnet.binancefuture.com"
	TestnetWsURL   = "wss://testnet.binancefuture.com/ws-fapi/v1"
)

// ===== Credentials 凭证 =====

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign 生成 HMAC-SHA256 签名 (hex)
// Binance 只对参数串签名，timestamp 已包含在参数中，method/path 不参与
func (c *Credentials) Sign(timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// APIClient 签名请求共享依赖
type APIClient struct {
	credentials *Credentials
	rest        *exchange.RestClient
}

// NewAPIClient 创建 APIClient
func NewAPIClient(creds *Credentials, baseURL string, limiter *ratelimit.Window) *APIClient {
	return &APIClient{
		credentials: creds,
		rest:        exchange.NewRestClient(model.VenueBinance, baseURL, limiter),
	}
}

// PerpetualManager Binance perpetual unified manager
type PerpetualManager struct {
	Market   *MarketClient
	Order    *PerpetualOrderClient
	Account  *PerpetualAccountClient
	Position *PerpetualPositionClient
	Ticker   *TickerClient
}

// NewPerpetualManager 通过一组凭证和 URL 创建 perpetual manager
func NewPerpetualManager(apiKey, apiSecret, restURL, wsURL string, limiter *ratelimit.Window) *PerpetualManager {
	apiClient := NewAPIClient(NewCredentials(apiKey, apiSecret), restURL, limiter)
	return &PerpetualManager{
		Market:   NewMarketClient(apiClient),
		Order:    NewPerpetualOrderClient(apiClient),
		Account:  NewPerpetualAccountClient(apiClient),
		Position: NewPerpetualPositionClient(apiClient),
		Ticker:   NewTickerClient(wsURL),
	}
}
