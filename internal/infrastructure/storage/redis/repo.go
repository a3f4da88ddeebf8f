package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Repo 决策广播 (Stream + PubSub) 与最新资金费率缓存 (Hash)
type Repo struct {
	rdb            *redis.Client
	prefix         string
	ttl            time.Duration
	decisionStream string
	decisionChan   string
}

// FundingEntry Hash 中每个交易所一条
type FundingEntry struct {
	Venue           string  `json:"venue"`
	Rate            float64 `json:"rate"`
	NextFundingTime int64   `json:"next_funding_time"`
	Ts              int64   `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, decisionStream, decisionChan string) *Repo {
	if strings.TrimSpace(decisionStream) == "" {
		decisionStream = prefix + ":decisions"
	}
	if strings.TrimSpace(decisionChan) == "" {
		decisionChan = prefix + ":decisions:pub"
	}
	return &Repo{
		rdb:            rdb,
		prefix:         prefix,
		ttl:            ttl,
		decisionStream: decisionStream,
		decisionChan:   decisionChan,
	}
}

// Dial 连接并 PING
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// FundingKey <prefix>:funding:<ticker>
func (r *Repo) FundingKey(ticker string) string {
	return r.prefix + ":funding:" + ticker
}

// CacheFunding Hash: field = 交易所 -> json
func (r *Repo) CacheFunding(ctx context.Context, rec *model.FundingRecord) error {
	if rec == nil || len(rec.Observations) == 0 {
		return nil
	}
	key := r.FundingKey(rec.Ticker)
	pipe := r.rdb.Pipeline()
	for v, obs := range rec.Observations {
		b, _ := json.Marshal(FundingEntry{
			Venue:           v.String(),
			Rate:            obs.Rate,
			NextFundingTime: obs.NextFundingTime,
			Ts:              rec.FetchedAt,
		})
		pipe.HSet(ctx, key, v.String(), string(b))
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// PublishDecision XADD 留档，PUBLISH 实时推送
func (r *Repo) PublishDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	_, err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.decisionStream,
		Values: map[string]any{
			"id":      d.ID,
			"ticker":  d.Ticker,
			"trade":   d.Trade,
			"net":     d.ExpectedNetRate,
			"ts_ms":   d.Timestamp,
			"payload": string(payload),
		},
	}).Result()
	if err != nil {
		return err
	}

	return r.rdb.Publish(ctx, r.decisionChan, string(payload)).Err()
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.DecisionPublisher = (*Repo)(nil)
