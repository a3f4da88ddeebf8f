package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

// SnapshotService 并发拉取所有资金费率源，合并为每个标的一条 FundingRecord。
// sources 按优先级从低到高排列，同一交易所后面的源覆盖前面的
type SnapshotService struct {
	sources   []port.FundingSource
	venues    map[model.Venue]bool
	publisher port.DecisionPublisher
	now       func() time.Time
}

// NewSnapshotService venues 为空表示不过滤
func NewSnapshotService(venues []model.Venue, publisher port.DecisionPublisher, sources ...port.FundingSource) *SnapshotService {
	set := make(map[model.Venue]bool, len(venues))
	for _, v := range venues {
		set[v] = true
	}
	out := make([]port.FundingSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return &SnapshotService{
		sources:   out,
		venues:    set,
		publisher: publisher,
		now:       time.Now,
	}
}

// Fetch 一个源失败只记录告警；全部失败返回 ErrStaleData
func (s *SnapshotService) Fetch(ctx context.Context, tickers []string) (map[string]*model.FundingRecord, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("%w: no funding sources", dsvc.ErrStaleData)
	}

	results := make([][]port.FundingQuote, len(s.sources))
	var (
		mu     sync.Mutex
		failed int
	)

	var g errgroup.Group
	for i, src := range s.sources {
		g.Go(func() error {
			quotes, err := src.FetchFunding(ctx, tickers)
			if err != nil {
				log.Warn().Err(err).Str("source", src.Name()).Msg("fetch funding failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			results[i] = quotes
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(s.sources) {
		return nil, fmt.Errorf("%w: all %d funding sources failed", dsvc.ErrStaleData, failed)
	}

	fetchedAt := s.now().UnixMilli()
	records := make(map[string]*model.FundingRecord, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(t)
		records[t] = model.NewFundingRecord(t, fetchedAt)
	}

	// 按优先级依次写入
	for i, quotes := range results {
		for _, q := range quotes {
			rec, ok := records[strings.ToUpper(q.Ticker)]
			if !ok {
				continue
			}
			if len(s.venues) > 0 && !s.venues[q.Venue] {
				continue
			}
			if q.NextFundingTime <= 0 {
				log.Debug().
					Str("source", s.sources[i].Name()).
					Str("exchange", q.Venue.String()).
					Str("symbol", q.Ticker).
					Msg("funding quote without next funding time")
				continue
			}
			rec.Set(q.Venue, q.Rate, q.NextFundingTime)
		}
	}

	if s.publisher != nil {
		for _, rec := range records {
			if err := s.publisher.CacheFunding(ctx, rec); err != nil {
				log.Warn().Err(err).Str("symbol", rec.Ticker).Msg("cache funding failed")
			}
		}
	}
	return records, nil
}
