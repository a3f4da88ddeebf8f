package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/ratelimit"
)

const (
	RestURL         = "https://www.okx.com"
	MainnetWsURL    = "wss://ws.okx.com:8443/ws/v5/public"
	TestnetWsURL    = "wss://wspap.okx.com:8443/ws/v5/public"
	instTypeSwap    = "SWAP"
	marginModeCross = "cross"
)

// ===== Credentials 凭证 =====

// Credentials 包含 OKX API 凭证和签名方法
type Credentials struct {
	apiKey     string
	apiSecret  string
	passphrase string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret, passphrase string) *Credentials {
	return &Credentials{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
	}
}

// Sign 生成 OKX HMAC-SHA256 签名
// OKX 签名: BASE64(HMAC-SHA256(timestamp + method + requestPath + body, secretKey))
func (c *Credentials) Sign(timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// Passphrase 返回 Passphrase
func (c *Credentials) Passphrase() string {
	return c.passphrase
}

// APIClient 封装访问 OKX REST API 所需的共享依赖
type APIClient struct {
	credentials *Credentials
	rest        *exchange.RestClient
	simulated   bool // 模拟盘需要 x-simulated-trading: 1
}

// NewAPIClient 创建 APIClient
func NewAPIClient(creds *Credentials, baseURL string, simulated bool, limiter *ratelimit.Window) *APIClient {
	return &APIClient{
		credentials: creds,
		rest:        exchange.NewRestClient(model.VenueOKX, baseURL, limiter),
		simulated:   simulated,
	}
}

// ===== Manager 结构 =====

// PerpetualManager OKX perpetual (perpetual contract) unified manager
type PerpetualManager struct {
	Market   *MarketClient
	Order    *PerpetualOrderClient
	Account  *PerpetualAccountClient
	Position *PerpetualPositionClient
	Ticker   *TickerClient
}

// NewPerpetualManager 通过一组凭证和 URL 创建 perpetual manager
func NewPerpetualManager(creds *Credentials, restURL, wsURL string, simulated bool, limiter *ratelimit.Window) *PerpetualManager {
	apiClient := NewAPIClient(creds, restURL, simulated, limiter)
	return &PerpetualManager{
		Market:   NewMarketClient(apiClient),
		Order:    NewPerpetualOrderClient(apiClient),
		Account:  NewPerpetualAccountClient(apiClient),
		Position: NewPerpetualPositionClient(apiClient),
		Ticker:   NewTickerClient(wsURL),
	}
}
