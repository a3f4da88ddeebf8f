package factory

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/ratelimit"
)

// Deps 创建单个交易所适配器所需的依赖
type Deps struct {
	Venue   model.Venue
	Config  config.ExchangeConfig
	Creds   port.Credentials
	Limiter *ratelimit.Window
	Mainnet bool
}

// Venue 一个已创建的交易所：适配器 + 可选的资金费率源
type Venue struct {
	Adapter port.VenueAdapter
	Funding port.FundingSource // 可以为 nil
}

// Factory 由各交易所包的 init() 注册
type Factory func(d Deps) (Venue, error)

// registry maps venues to their respective adapter factories
var registry = make(map[model.Venue]Factory)

// Register 注册交易所工厂，重复注册时覆盖
func Register(v model.Venue, f Factory) {
	if f == nil {
		log.Warn().Str("exchange", v.String()).Msg("invalid venue factory")
		return
	}
	if _, exists := registry[v]; exists {
		log.Warn().Str("exchange", v.String()).Msg("venue factory already registered, overwriting")
	}
	registry[v] = f
}

// Get 获取已注册的工厂
func Get(v model.Venue) (Factory, bool) {
	f, ok := registry[v]
	return f, ok
}

// Registered 已注册的交易所（排序后）
func Registered() []model.Venue {
	out := make([]model.Venue, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LimiterOptions 配置 -> 限流参数
func LimiterOptions(rl config.RateLimitConfig) ratelimit.Options {
	return ratelimit.Options{
		Capacity:       rl.Capacity,
		Window:         time.Duration(rl.WindowMs) * time.Millisecond,
		Margin:         time.Duration(rl.MarginMs) * time.Millisecond,
		Backoff:        time.Duration(rl.BackoffMs) * time.Millisecond,
		NetworkRetries: rl.NetworkRetries,
		NetworkBackoff: time.Duration(rl.NetworkBackoffMs) * time.Millisecond,
	}
}

// Build 为每个启用的交易所创建适配器，每个交易所独立一个限流器。
// dry-run 模式下缺少凭证不算错误，只能使用公共接口
func Build(cfg *config.Config, creds port.CredentialProvider) (map[model.Venue]Venue, error) {
	out := make(map[model.Venue]Venue)
	for _, v := range cfg.EnabledVenues() {
		f, ok := Get(v)
		if !ok {
			return nil, fmt.Errorf("exchange %s: no factory registered", v)
		}
		exCfg, _ := cfg.Exchange(v)

		c, err := creds.Credentials(v)
		if err != nil {
			if !cfg.App.DryRun || !errors.Is(err, config.ErrMissingCredentials) {
				return nil, fmt.Errorf("exchange %s: %w", v, err)
			}
			log.Warn().Str("exchange", v.String()).Msg("no credentials, public endpoints only")
		}

		built, err := f(Deps{
			Venue:   v,
			Config:  exCfg,
			Creds:   c,
			Limiter: ratelimit.New(v.String(), LimiterOptions(cfg.RateLimit)),
			Mainnet: cfg.App.Mainnet,
		})
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", v, err)
		}
		out[v] = built
		log.Info().Str("exchange", v.String()).Bool("mainnet", cfg.App.Mainnet).Msg("exchange ready")
	}
	return out, nil
}
