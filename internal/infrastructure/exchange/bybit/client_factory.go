package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/ratelimit"
)

const (
	MainnetRestURL = "https://api.bybit.com"
	MainnetWsURL   = "wss://stream.bybit.com/v5/public/linear"
	TestnetRestURL = "https://api-testnet.bybit.com"
	TestnetWsURL   = "wss://stream-testnet.bybit.com/v5/public/linear"

	categoryLinear = "linear"
	recvWindow     = "5000"
)

// ===== Credentials 凭证 =====

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{apiKey: apiKey, apiSecret: apiSecret}
}

// Sign Bybit V5: hex(HMAC-SHA256(timestamp + apiKey + recvWindow + payload))
// GET 的 payload 为 query，POST 为 JSON body
func (c *Credentials) Sign(timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(timestamp + c.apiKey + recvWindow + body))
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
		rest:        exchange.NewRestClient(model.VenueBybit, baseURL, limiter),
	}
}

// PerpetualManager Bybit linear perpetual unified manager
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
