package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/container"
	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/factory"
	"fundarb/internal/infrastructure/storage"
	"fundarb/internal/infrastructure/storage/composite"
	pgrepo "fundarb/internal/infrastructure/storage/postgres"
	redisrepo "fundarb/internal/infrastructure/storage/redis"
	sqliterepo "fundarb/internal/infrastructure/storage/sqlite"
	"fundarb/internal/interfaces/console"

	// 各交易所在 init() 中注册工厂
	_ "fundarb/internal/infrastructure/exchange/binance"
	_ "fundarb/internal/infrastructure/exchange/bybit"
	_ "fundarb/internal/infrastructure/exchange/hyperliquid"
	_ "fundarb/internal/infrastructure/exchange/okx"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	venues    map[model.Venue]factory.Venue
	ledger    port.Ledger
	publisher port.DecisionPublisher

	// 输出端口
	Sink port.Sink

	// 应用层
	container *container.Container
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	creds, err := config.NewEnvCredentials(cfg.App.EnvFile)
	if err != nil {
		return nil, err
	}

	venues, err := factory.Build(cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exchanges: %w", err)
	}
	if len(venues) < 2 {
		return nil, ErrNoExchangesEnabled
	}

	sc := &ServiceContext{
		Ctx:    ctx,
		Config: cfg,
		venues: venues,
		Sink:   console.NewSink(),
	}

	if err := sc.initializeStorage(); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	c, err := container.New(container.Deps{
		Adapters:  sc.Adapters(),
		Sources:   sc.FundingSources(),
		Ledger:    sc.ledger,
		Publisher: sc.publisher,
		Sink:      sc.Sink,
	}, settingsFromConfig(cfg))
	if err != nil {
		_ = sc.Close()
		return nil, err
	}
	sc.container = c

	log.Info().
		Int("exchanges", len(venues)).
		Int("funding_sources", len(sc.FundingSources())).
		Msg("✓ All components initialized")
	return sc, nil
}

// initializeStorage sqlite 为主账本，postgres 为镜像；都未启用时使用内存账本
func (sc *ServiceContext) initializeStorage() error {
	var ledgers []port.Ledger

	if sc.Config.SQLite.Enabled {
		repo, err := sqliterepo.New(sc.Config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		ledgers = append(ledgers, repo)
		log.Info().Str("path", sc.Config.SQLite.Path).Msg("✓ SQLite initialized")
	}

	if sc.Config.Postgres.Enabled {
		repo, err := pgrepo.New(sc.Config.Postgres.DSN)
		if err != nil {
			closeAll(ledgers)
			return fmt.Errorf("postgres: %w", err)
		}
		ledgers = append(ledgers, repo)
		log.Info().Msg("✓ Postgres initialized")
	}

	switch len(ledgers) {
	case 0:
		log.Warn().Msg("no database enabled, ledger kept in memory")
		sc.ledger = storage.NewInMemoryLedger()
	case 1:
		sc.ledger = ledgers[0]
	default:
		sc.ledger = composite.New(ledgers...)
	}

	if !sc.Config.Redis.Enabled {
		sc.publisher = storage.NopPublisher{}
		return nil
	}

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	rdb, err := redisrepo.Dial(ctx, sc.Config.Redis.Addr, sc.Config.Redis.Password, sc.Config.Redis.DB)
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	sc.publisher = redisrepo.New(
		rdb,
		sc.Config.Redis.Prefix,
		time.Duration(sc.Config.Redis.TTLSeconds)*time.Second,
		sc.Config.Redis.DecisionStream,
		sc.Config.Redis.DecisionChannel,
	)
	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

func closeAll(ledgers []port.Ledger) {
	for _, l := range ledgers {
		if err := l.Close(); err != nil {
			log.Error().Err(err).Msg("error closing ledger")
		}
	}
}

// Adapters 已启用交易所的适配器
func (sc *ServiceContext) Adapters() map[model.Venue]port.VenueAdapter {
	out := make(map[model.Venue]port.VenueAdapter, len(sc.venues))
	for v, built := range sc.venues {
		out[v] = built.Adapter
	}
	return out
}

// FundingSources Hyperliquid 聚合源优先级最低，其余按交易所代码排序，后者覆盖前者
func (sc *ServiceContext) FundingSources() []port.FundingSource {
	var out []port.FundingSource
	if hl, ok := sc.venues[model.VenueHyperliquid]; ok && hl.Funding != nil {
		out = append(out, hl.Funding)
	}
	for _, v := range model.AllVenues {
		built, ok := sc.venues[v]
		if !ok || v == model.VenueHyperliquid || built.Funding == nil {
			continue
		}
		out = append(out, built.Funding)
	}
	return out
}

func (sc *ServiceContext) Container() *container.Container {
	return sc.container
}

// Close 关闭 ServiceContext 中的所有资源
func (sc *ServiceContext) Close() error {
	if sc.container != nil {
		if err := sc.container.Close(); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
		return nil
	}
	if sc.publisher != nil {
		if err := sc.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("error closing publisher")
		}
	}
	if sc.ledger != nil {
		if err := sc.ledger.Close(); err != nil {
			log.Error().Err(err).Msg("error closing ledger")
		}
	}
	return nil
}

func settingsFromConfig(cfg *config.Config) container.Settings {
	s := cfg.Strategy
	return container.Settings{
		Tickers:           cfg.App.Tickers,
		Fees:              cfg.FeeTable(),
		FundingMultiplier: s.FundingMultiplier,
		RiskFraction:      s.RiskFraction,
		Leverage:          s.Leverage,
		Arbitrage: service.ArbitrageConfig{
			MarginAsset: s.MarginAsset,
			DryRun:      cfg.App.DryRun,
			Executor: domainservice.ExecutorConfig{
				Dwell:              s.Dwell(),
				RetryInterval:      s.RetryInterval(),
				MaxRetries:         s.MaxRetries,
				FillRatioThreshold: s.FillRatioThreshold,
				PriceBiasTicks:     s.PriceBiasTicks,
			},
		},
		Schedule: service.SchedulerConfig{
			Tickers:   cfg.App.Tickers,
			FetchLead: s.FetchLead(),
			OpenLead:  s.OpenLead(),
			CloseLag:  s.CloseLag(),
		},
		Color: true,
	}
}
