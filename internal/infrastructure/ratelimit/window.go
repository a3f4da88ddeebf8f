package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/service"
)

// Window 滑动窗口限流器，每个交易所一个实例
// 记录最近 capacity 次请求的时间，第 capacity+1 次请求需等到最早一次超出窗口
type Window struct {
	name     string
	capacity int
	window   time.Duration
	margin   time.Duration
	backoff  time.Duration

	netRetries int
	netBackoff time.Duration

	mu     sync.Mutex
	stamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Options 限流参数
type Options struct {
	Capacity int
	Window   time.Duration
	Margin   time.Duration
	Backoff  time.Duration // 收到 429 后的等待时间

	// 网络错误的固定间隔重试，由 REST 客户端执行
	NetworkRetries int
	NetworkBackoff time.Duration
}

// DefaultOptions 20 次 / 2s，余量 50ms，429 等待 5s；网络错误重试 2 次，间隔 1s
func DefaultOptions() Options {
	return Options{
		Capacity:       20,
		Window:         2 * time.Second,
		Margin:         50 * time.Millisecond,
		Backoff:        5 * time.Second,
		NetworkRetries: 2,
		NetworkBackoff: time.Second,
	}
}

// New 创建限流器
func New(name string, opts Options) *Window {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.Margin < 0 {
		opts.Margin = def.Margin
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.NetworkRetries < 0 {
		opts.NetworkRetries = def.NetworkRetries
	}
	if opts.NetworkBackoff <= 0 {
		opts.NetworkBackoff = def.NetworkBackoff
	}
	return &Window{
		name:     name,
		capacity: opts.Capacity,
		window:   opts.Window,
		margin:   opts.Margin,
		backoff:  opts.Backoff,
		stamps:   make([]time.Time, 0, opts.Capacity),
		now:      time.Now,
		sleep:    sleepCtx,

		netRetries: opts.NetworkRetries,
		netBackoff: opts.NetworkBackoff,
	}
}

// NetworkRetry 网络错误的重试次数与间隔，w 为 nil 时返回默认值
func (w *Window) NetworkRetry() (int, time.Duration) {
	if w == nil {
		def := DefaultOptions()
		return def.NetworkRetries, def.NetworkBackoff
	}
	return w.netRetries, w.netBackoff
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait 阻塞直到可以发出下一次请求，并记录本次请求时间
// 持锁等待：同一交易所的请求串行记账
func (w *Window) Wait(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.stamps) >= w.capacity {
		oldest := w.stamps[0]
		if elapsed := w.now().Sub(oldest); elapsed < w.window {
			wait := w.window - elapsed + w.margin
			log.Debug().
				Str("exchange", w.name).
				Dur("wait", wait).
				Msg("rate limit window full")
			if err := w.sleep(ctx, wait); err != nil {
				return err
			}
		}
		w.stamps = w.stamps[1:]
	}
	w.stamps = append(w.stamps, w.now())
	return nil
}

// Do 限流后执行 fn；fn 返回 429 时等待 backoff 并重试一次
func (w *Window) Do(ctx context.Context, fn func() error) error {
	if err := w.Wait(ctx); err != nil {
		return err
	}
	err := fn()
	if !service.IsRateLimited(err) {
		return err
	}

	log.Warn().Err(err).
		Str("exchange", w.name).
		Dur("backoff", w.backoff).
		Msg("rate limited, backing off")
	if serr := w.sleep(ctx, w.backoff); serr != nil {
		return serr
	}
	if werr := w.Wait(ctx); werr != nil {
		return werr
	}
	return fn()
}

// Len 窗口内记录数
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stamps)
}
