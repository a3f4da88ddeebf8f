package hyperliquid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sonirico/go-hyperliquid"

	"fundarb/internal/domain/model"
	"fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/ratelimit"
)

const (
	MainnetURL = "https://api.hyperliquid.xyz"
	TestnetURL = "https://api.hyperliquid-testnet.xyz"

	// 永续价格最多 6 - szDecimals 位小数，且不超过 5 位有效数字
	maxPriceDecimals = 6
	maxSigFigs       = 5
)

// ErrNoSigner 没有配置私钥时不能下单
var ErrNoSigner = errors.New("hyperliquid: private key not configured")

// ExchangeClient go-hyperliquid SDK 的下单 / 撤单 / 杠杆，meta 首次使用时经 /info 加载。
// SDK 请求与 /info 共用同一个限流器
type ExchangeClient struct {
	baseURL    string
	privateKey string
	account    string
	info       *InfoClient
	limiter    *ratelimit.Window

	mu   sync.Mutex
	meta *hyperliquid.Meta
	exc  *hyperliquid.Exchange
}

// NewExchangeClient account 为空时由私钥推出
func NewExchangeClient(baseURL, privateKey, account string, info *InfoClient, limiter *ratelimit.Window) *ExchangeClient {
	c := &ExchangeClient{
		baseURL:    baseURL,
		privateKey: strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"),
		account:    strings.TrimSpace(account),
		info:       info,
		limiter:    limiter,
	}
	if c.account == "" && c.privateKey != "" {
		if pk, err := crypto.HexToECDSA(c.privateKey); err == nil {
			c.account = crypto.PubkeyToAddress(pk.PublicKey).Hex()
		} else {
			log.Warn().Err(err).Str("exchange", "HYPERLIQUID").Msg("failed to parse private key")
		}
	}
	return c
}

// Account 查询用的主账户地址
func (c *ExchangeClient) Account() string { return c.account }

func (c *ExchangeClient) loadMeta(ctx context.Context) (*hyperliquid.Meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meta != nil {
		return c.meta, nil
	}
	if c.info == nil {
		c.info = NewInfoClient(c.baseURL, c.limiter)
	}
	meta, err := c.info.Meta(ctx)
	if err != nil {
		return nil, err
	}
	c.meta = meta
	return meta, nil
}

// throttle SDK 请求走限流器
func (c *ExchangeClient) throttle(ctx context.Context, fn func() error) error {
	if c.limiter == nil {
		return fn()
	}
	return c.limiter.Do(ctx, fn)
}

func (c *ExchangeClient) exchange(ctx context.Context) (*hyperliquid.Exchange, error) {
	meta, err := c.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exc != nil {
		return c.exc, nil
	}
	if c.privateKey == "" {
		return nil, ErrNoSigner
	}
	pk, err := crypto.HexToECDSA(c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: parse private key: %w", err)
	}
	// NewExchange(ctx, pk, baseURL, meta, vaultAddress, accountAddress, spotMeta)
	// spotMeta 为 nil 时 SDK 会在构造时请求 spotMeta 且失败即 panic，只交易永续，传空值
	c.exc = hyperliquid.NewExchange(ctx, pk, c.baseURL, meta, "", c.account, &hyperliquid.SpotMeta{})
	return c.exc, nil
}

// InstrumentSpec szDecimals 即数量精度，tick = 10^-(6-szDecimals)
func (c *ExchangeClient) InstrumentSpec(ctx context.Context, coin string) (model.InstrumentSpec, error) {
	meta, err := c.loadMeta(ctx)
	if err != nil {
		return model.InstrumentSpec{}, err
	}
	for _, asset := range meta.Universe {
		if asset.Name != coin {
			continue
		}
		return model.InstrumentSpec{
			Symbol:            coin,
			QuantityPrecision: asset.SzDecimals,
			ContractSize:      1,
			TickSize:          TickSize(asset.SzDecimals),
			MaxLeverage:       asset.MaxLeverage,
		}, nil
	}
	return model.InstrumentSpec{}, fmt.Errorf("hyperliquid: coin %s not in universe", coin)
}

// TickSize 价格最小变动
func TickSize(szDecimals int) float64 {
	d := maxPriceDecimals - szDecimals
	if d < 0 {
		d = 0
	}
	return math.Pow10(-d)
}

// NormalizePrice 非整数价格截到 5 位有效数字，再限制小数位
func NormalizePrice(px float64, szDecimals int) float64 {
	d := decimal.NewFromFloat(px)
	if !d.IsInteger() {
		digits := len(d.Truncate(0).Abs().String())
		if d.Abs().LessThan(decimal.NewFromInt(1)) {
			digits = 0
		}
		if places := int32(maxSigFigs - digits); places >= 0 {
			d = d.Round(places)
		} else {
			d = d.Round(0)
		}
	}
	maxDec := int32(maxPriceDecimals - szDecimals)
	if maxDec < 0 {
		maxDec = 0
	}
	f, _ := d.Round(maxDec).Float64()
	return f
}

func (c *ExchangeClient) szDecimals(ctx context.Context, coin string) int {
	spec, err := c.InstrumentSpec(ctx, coin)
	if err != nil {
		return 0
	}
	return spec.QuantityPrecision
}

// PlaceOrder 限价 GTC
func (c *ExchangeClient) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	exc, err := c.exchange(ctx)
	if err != nil {
		return "", err
	}
	price := NormalizePrice(req.Price, c.szDecimals(ctx, req.Symbol))

	orderReq := hyperliquid.CreateOrderRequest{
		Coin:  req.Symbol,
		IsBuy: req.Side.IsBuy(),
		Size:  req.Size,
		Price: price,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{
				Tif: hyperliquid.TifGtc,
			},
		},
		ReduceOnly: req.ReduceOnly,
	}

	var res hyperliquid.OrderStatus
	err = c.throttle(ctx, func() error {
		var oerr error
		res, oerr = exc.Order(ctx, orderReq, nil)
		return oerr
	})
	if err != nil {
		return "", service.WrapTransport("hyperliquid order", err)
	}
	if res.Error != nil {
		return "", service.NewVenueError("HYPERLIQUID", 200, "", *res.Error)
	}

	var orderID string
	switch {
	case res.Resting != nil:
		orderID = strconv.FormatInt(res.Resting.Oid, 10)
	case res.Filled != nil:
		orderID = strconv.Itoa(res.Filled.Oid)
	default:
		return "", fmt.Errorf("hyperliquid: empty order response")
	}

	log.Info().
		Str("exchange", "HYPERLIQUID").
		Str("symbol", req.Symbol).
		Str("side", req.Side.OrderSide()).
		Float64("quantity", req.Size).
		Float64("price", price).
		Str("orderID", orderID).
		Msg("order placed")
	return orderID, nil
}

// CancelOrder 撤单
func (c *ExchangeClient) CancelOrder(ctx context.Context, coin, orderID string) error {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("hyperliquid: bad order id %q", orderID)
	}
	exc, err := c.exchange(ctx)
	if err != nil {
		return err
	}
	if err := c.throttle(ctx, func() error {
		_, cerr := exc.Cancel(ctx, coin, oid)
		return cerr
	}); err != nil {
		return fmt.Errorf("cancel order failed: %w", err)
	}
	log.Info().Str("exchange", "HYPERLIQUID").Str("symbol", coin).Str("orderID", orderID).Msg("order cancelled")
	return nil
}

// SetLeverage 全仓杠杆
func (c *ExchangeClient) SetLeverage(ctx context.Context, coin string, leverage int) error {
	exc, err := c.exchange(ctx)
	if err != nil {
		return err
	}
	if err := c.throttle(ctx, func() error {
		_, lerr := exc.UpdateLeverage(ctx, leverage, coin, true)
		return lerr
	}); err != nil {
		return fmt.Errorf("set leverage failed: %w", err)
	}
	log.Info().
		Str("exchange", "HYPERLIQUID").
		Str("symbol", coin).
		Int("leverage", leverage).
		Msg("leverage adjusted")
	return nil
}
