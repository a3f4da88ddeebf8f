package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"fundarb/internal/domain/model"
)

type Config struct {
	App struct {
		LogLevel string   `toml:"log_level"`
		Tickers  []string `toml:"tickers"`
		DryRun   bool     `toml:"dry_run"`
		Mainnet  bool     `toml:"mainnet"`
		EnvFile  string   `toml:"env_file"`
	} `toml:"app"`

	Strategy StrategyConfig `toml:"strategy"`

	// 交易所 -> 往返手续费率
	Fees map[string]float64 `toml:"fees"`

	RateLimit RateLimitConfig `toml:"rate_limit"`

	// [exchange.binance] / [exchange.okx] ...
	Exchanges map[string]ExchangeConfig `toml:"exchange"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Redis struct {
		Enabled         bool   `toml:"enabled"`
		Addr            string `toml:"addr"`
		Password        string `toml:"password"`
		DB              int    `toml:"db"`
		Prefix          string `toml:"prefix"`
		TTLSeconds      int    `toml:"ttl_seconds"`
		DecisionStream  string `toml:"decision_stream"`
		DecisionChannel string `toml:"decision_channel"`
	} `toml:"redis"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`
}

// StrategyConfig 决策与下单参数
type StrategyConfig struct {
	FundingMultiplier    float64 `toml:"funding_multiplier"`
	RiskFraction         float64 `toml:"risk_fraction"`
	Leverage             int     `toml:"leverage"`
	PriceBiasTicks       int     `toml:"price_bias_ticks"`
	DwellSeconds         int     `toml:"dwell_seconds"`
	RetryIntervalSeconds int     `toml:"retry_interval_seconds"`
	MaxRetries           int     `toml:"max_retries"`
	FillRatioThreshold   float64 `toml:"fill_ratio_threshold"`
	MarginAsset          string  `toml:"margin_asset"`

	// 相对结算时间 T 的节点：T-fetch_lead 拉费率，T-open_lead 开仓，T+close_lag 平仓
	FetchLeadSeconds int `toml:"fetch_lead_seconds"`
	OpenLeadSeconds  int `toml:"open_lead_seconds"`
	CloseLagSeconds  int `toml:"close_lag_seconds"`
}

// RateLimitConfig 滑动窗口限流，以及网络错误的重试
type RateLimitConfig struct {
	Capacity         int `toml:"capacity"`
	WindowMs         int `toml:"window_ms"`
	MarginMs         int `toml:"margin_ms"`
	BackoffMs        int `toml:"backoff_ms"`
	NetworkRetries   int `toml:"network_retries"`
	NetworkBackoffMs int `toml:"network_backoff_ms"`
}

// ExchangeConfig 单个交易所配置
type ExchangeConfig struct {
	Enabled bool   `toml:"enabled"`
	RestURL string `toml:"rest_url"`
	WsURL   string `toml:"ws_url"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.EnvFile == "" {
		cfg.App.EnvFile = ".env"
	}

	s := &cfg.Strategy
	if s.FundingMultiplier <= 0 {
		s.FundingMultiplier = 3
	}
	if s.RiskFraction <= 0 {
		s.RiskFraction = 0.02
	}
	if s.Leverage <= 0 {
		s.Leverage = 5
	}
	if s.PriceBiasTicks == 0 {
		s.PriceBiasTicks = 20
	}
	if s.DwellSeconds <= 0 {
		s.DwellSeconds = 10
	}
	if s.RetryIntervalSeconds <= 0 {
		s.RetryIntervalSeconds = 3
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 10
	}
	if s.FillRatioThreshold <= 0 {
		s.FillRatioThreshold = 0.9
	}
	if s.MarginAsset == "" {
		s.MarginAsset = "USDT"
	}
	if s.FetchLeadSeconds <= 0 {
		s.FetchLeadSeconds = 600
	}
	if s.OpenLeadSeconds <= 0 {
		s.OpenLeadSeconds = 60
	}
	if s.CloseLagSeconds <= 0 {
		s.CloseLagSeconds = 5
	}

	if len(cfg.Fees) == 0 {
		cfg.Fees = map[string]float64{
			"hyperliquid": 0.0002,
			"okx":         0.0004,
			"binance":     0.00036,
			"bybit":       0.00036,
		}
	}

	r := &cfg.RateLimit
	if r.Capacity <= 0 {
		r.Capacity = 20
	}
	if r.WindowMs <= 0 {
		r.WindowMs = 2000
	}
	if r.MarginMs <= 0 {
		r.MarginMs = 50
	}
	if r.BackoffMs <= 0 {
		r.BackoffMs = 5000
	}
	if r.NetworkRetries <= 0 {
		r.NetworkRetries = 2
	}
	if r.NetworkBackoffMs <= 0 {
		r.NetworkBackoffMs = 1000
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/fundarb.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "fundarb"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 86400
	}
	if cfg.Redis.DecisionStream == "" {
		cfg.Redis.DecisionStream = "fundarb:decisions"
	}
	if cfg.Redis.DecisionChannel == "" {
		cfg.Redis.DecisionChannel = "fundarb:decisions"
	}
}

func validate(cfg *Config) error {
	cfg.App.Tickers = NormalizeTickers(cfg.App.Tickers)
	if len(cfg.App.Tickers) == 0 {
		return errors.New("app.tickers is empty")
	}

	s := cfg.Strategy
	if s.RiskFraction > 1 {
		return fmt.Errorf("strategy.risk_fraction %v > 1", s.RiskFraction)
	}
	if s.FillRatioThreshold > 1 {
		return fmt.Errorf("strategy.fill_ratio_threshold %v > 1", s.FillRatioThreshold)
	}
	if s.OpenLeadSeconds >= s.FetchLeadSeconds {
		return errors.New("strategy.open_lead_seconds must be smaller than fetch_lead_seconds")
	}

	for name, fee := range cfg.Fees {
		if _, ok := model.ParseVenue(name); !ok {
			return fmt.Errorf("fees: unknown exchange %q", name)
		}
		if fee < 0 {
			return fmt.Errorf("fees.%s is negative", name)
		}
	}

	enabled := 0
	for name, ex := range cfg.Exchanges {
		if _, ok := model.ParseVenue(name); !ok {
			return fmt.Errorf("exchange.%s: unknown exchange", name)
		}
		if !ex.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(ex.RestURL) == "" {
			return fmt.Errorf("exchange.%s.rest_url empty but enabled", name)
		}
	}
	if enabled < 2 {
		return errors.New("at least two exchanges must be enabled")
	}

	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

// NormalizeTickers 大写、去空、去重，允许写成 BTCUSDT / BTC-USDT
func NormalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		u = strings.TrimSuffix(strings.TrimSuffix(u, "-USDT-SWAP"), "-USDT")
		u = strings.TrimSuffix(u, "USDT")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// EnabledVenues 已启用的交易所（按代码字典序）
func (c *Config) EnabledVenues() []model.Venue {
	var out []model.Venue
	for _, v := range model.AllVenues {
		if ex, ok := c.Exchange(v); ok && ex.Enabled {
			out = append(out, v)
		}
	}
	return out
}

// Exchange 查询交易所配置，key 大小写不敏感
func (c *Config) Exchange(v model.Venue) (ExchangeConfig, bool) {
	for name, ex := range c.Exchanges {
		if pv, ok := model.ParseVenue(name); ok && pv == v {
			return ex, true
		}
	}
	return ExchangeConfig{}, false
}

// FeeTable 配置的手续费表，只包含已启用的交易所
func (c *Config) FeeTable() model.FeeTable {
	fees := make(model.FeeTable)
	enabled := map[model.Venue]bool{}
	for _, v := range c.EnabledVenues() {
		enabled[v] = true
	}
	for name, fee := range c.Fees {
		v, ok := model.ParseVenue(name)
		if ok && enabled[v] {
			fees[v] = fee
		}
	}
	return fees
}

func (s StrategyConfig) Dwell() time.Duration {
	return time.Duration(s.DwellSeconds) * time.Second
}

func (s StrategyConfig) RetryInterval() time.Duration {
	return time.Duration(s.RetryIntervalSeconds) * time.Second
}

func (s StrategyConfig) FetchLead() time.Duration {
	return time.Duration(s.FetchLeadSeconds) * time.Second
}

func (s StrategyConfig) OpenLead() time.Duration {
	return time.Duration(s.OpenLeadSeconds) * time.Second
}

func (s StrategyConfig) CloseLag() time.Duration {
	return time.Duration(s.CloseLagSeconds) * time.Second
}

// Redacted 启动日志用的配置视图，不含密码
func (c *Config) Redacted() map[string]any {
	venues := make([]string, 0)
	for _, v := range c.EnabledVenues() {
		venues = append(venues, v.String())
	}
	out := map[string]any{
		"tickers":   c.App.Tickers,
		"dry_run":   c.App.DryRun,
		"mainnet":   c.App.Mainnet,
		"exchanges": venues,
		"strategy":  c.Strategy,
		"fees":      c.Fees,
		"sqlite":    c.SQLite.Enabled,
		"redis":     c.Redis.Enabled,
		"postgres":  c.Postgres.Enabled,
	}
	if c.Redis.Enabled {
		out["redis_addr"] = c.Redis.Addr
	}
	return out
}
