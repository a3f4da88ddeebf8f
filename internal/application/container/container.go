package container

import (
	"errors"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/application/usecase/monitor"
	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

// Settings 应用层参数（由 svc 从配置转换而来）
type Settings struct {
	Tickers           []string
	Fees              model.FeeTable
	FundingMultiplier float64
	RiskFraction      float64
	Leverage          int
	Arbitrage         service.ArbitrageConfig
	Schedule          service.SchedulerConfig
	Color             bool
}

// Deps 基础设施端口
type Deps struct {
	Adapters  map[model.Venue]port.VenueAdapter
	Sources   []port.FundingSource // 优先级从低到高
	Ledger    port.Ledger
	Publisher port.DecisionPublisher
	Sink      port.Sink
}

// Container 按需创建应用服务，同一个实例只创建一次
type Container struct {
	deps     Deps
	settings Settings

	instruments      *service.InstrumentCache
	snapshotService  *service.SnapshotService
	arbitrageService *service.ArbitrageService
	positionService  *service.PositionService
	scheduler        *service.FundingScheduler
	reporter         *monitor.Reporter
}

func New(deps Deps, settings Settings) (*Container, error) {
	if len(deps.Adapters) < 2 {
		return nil, errors.New("at least two exchange adapters required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("ledger required")
	}
	if settings.Schedule.Tickers == nil {
		settings.Schedule.Tickers = settings.Tickers
	}
	return &Container{deps: deps, settings: settings}, nil
}

func (c *Container) Ledger() port.Ledger {
	return c.deps.Ledger
}

// Venues 已启用的交易所（按代码字典序）
func (c *Container) Venues() []model.Venue {
	var out []model.Venue
	for _, v := range model.AllVenues {
		if _, ok := c.deps.Adapters[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *Container) Instruments() *service.InstrumentCache {
	if c.instruments == nil {
		c.instruments = service.NewInstrumentCache(c.deps.Adapters)
	}
	return c.instruments
}

func (c *Container) SnapshotService() *service.SnapshotService {
	if c.snapshotService == nil {
		c.snapshotService = service.NewSnapshotService(c.Venues(), c.deps.Publisher, c.deps.Sources...)
	}
	return c.snapshotService
}

func (c *Container) ArbitrageService() *service.ArbitrageService {
	if c.arbitrageService == nil {
		c.arbitrageService = service.NewArbitrageService(
			c.deps.Adapters,
			dsvc.NewArbitrageSelector(c.settings.Fees, c.settings.FundingMultiplier),
			dsvc.NewPositionSizer(c.settings.RiskFraction, c.settings.Leverage),
			c.Instruments(),
			c.deps.Ledger,
			c.deps.Publisher,
			c.settings.Arbitrage,
		)
	}
	return c.arbitrageService
}

func (c *Container) PositionService() *service.PositionService {
	if c.positionService == nil {
		c.positionService = service.NewPositionService(c.deps.Ledger)
	}
	return c.positionService
}

func (c *Container) Reporter() *monitor.Reporter {
	if c.reporter == nil && c.deps.Sink != nil {
		c.reporter = monitor.NewReporter(c.deps.Sink, c.settings.Color)
	}
	return c.reporter
}

// Scheduler 以字典序第一个交易所的服务器时间为准
func (c *Container) Scheduler() *service.FundingScheduler {
	if c.scheduler == nil {
		var clock service.ServerClock
		if venues := c.Venues(); len(venues) > 0 {
			clock = c.deps.Adapters[venues[0]]
		}
		var reporter service.Reporter
		if r := c.Reporter(); r != nil {
			reporter = r
		}
		c.scheduler = service.NewFundingScheduler(
			c.SnapshotService(),
			c.ArbitrageService(),
			c.PositionService(),
			clock,
			reporter,
			c.settings.Schedule,
		)
	}
	return c.scheduler
}

func (c *Container) Close() error {
	var errs []error
	if c.deps.Publisher != nil {
		errs = append(errs, c.deps.Publisher.Close())
	}
	errs = append(errs, c.deps.Ledger.Close())
	return errors.Join(errs...)
}
