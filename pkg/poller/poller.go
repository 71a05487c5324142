// 文件: pkg/poller/poller.go
// 到点闹钟轮询器
//
// 每 interval 醒来一次, 处理上次处理过的分钟之后到当前分钟之间的每一个 UTC 分钟:
// 1. FindDueAlarms(hour, minute, weekday)
// 2. (可选) Claim, 多实例时同一定义同一分钟只投递一次
// 3. 构建事件并发布
//
// 约束:
// - 同一个轮询器不会重复处理同一分钟
// - 醒得晚了也按错过的那一分钟匹配, 补偿窗口最多 MaxCatchUp
// - 查询失败时停在失败的分钟, 下次醒来重试
// - 发布失败只计数和记日志, 不重试, 不影响后续分钟

package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"raidhub.com/pkg/notify"
	"raidhub.com/pkg/schedule"
)

// =============================================================================
// 配置
// =============================================================================

const (
	// DefaultInterval 默认轮询间隔, 小于一分钟保证每分钟至少醒一次
	DefaultInterval = 20 * time.Second

	// DefaultMaxCatchUp 默认补偿窗口
	DefaultMaxCatchUp = 15 * time.Minute
)

// Config 轮询配置
type Config struct {
	Interval    time.Duration
	MaxCatchUp  time.Duration
	QuarterOnly bool // 只处理 0/15/30/45 分
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		MaxCatchUp:  DefaultMaxCatchUp,
		QuarterOnly: true,
	}
}

// =============================================================================
// 依赖
// =============================================================================

// DueFinder 到点查询, 通常是 *schedule.Matcher
type DueFinder interface {
	FindDueAlarms(ctx context.Context, hour, minute int, day time.Weekday) ([]schedule.DueAlarm, error)
}

// Claimer 投递抢占, 通常是 alarm.Index
type Claimer interface {
	Claim(ctx context.Context, definitionID int64, fireAt time.Time) (bool, error)
}

// IDSource 事件 ID
type IDSource interface {
	Next() int64
}

// =============================================================================
// Poller
// =============================================================================

// Stats 统计
type Stats struct {
	Ticks      int64
	Minutes    int64 // 处理过的分钟数
	Due        int64
	Published  int64
	Failed     int64
	Duplicates int64 // 被其他实例抢先的
	LastMinute time.Time
}

// Poller 轮询器
type Poller struct {
	finder    DueFinder
	publisher notify.Publisher
	ids       IDSource
	claimer   Claimer // 可选
	clock     schedule.Clock
	log       *zap.Logger
	cfg       Config

	mu   sync.Mutex   // 串行化 Tick, Stats 不取这把锁
	last atomic.Int64 // 最后处理完成的分钟 (unix 秒), 0 表示尚未处理

	ticks, minutes, due, published, failed, duplicates atomic.Int64

	// 生命周期
	lifeMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New 创建轮询器
func New(finder DueFinder, publisher notify.Publisher, ids IDSource, cfg Config, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxCatchUp < 0 {
		cfg.MaxCatchUp = 0
	}
	return &Poller{
		finder:    finder,
		publisher: publisher,
		ids:       ids,
		clock:     schedule.SystemClock{},
		log:       log,
		cfg:       cfg,
	}
}

// SetClock 替换时钟
func (p *Poller) SetClock(c schedule.Clock) {
	p.clock = c
}

// SetClaimer 设置投递抢占
func (p *Poller) SetClaimer(c Claimer) {
	p.claimer = c
}

// =============================================================================
// 生命周期
// =============================================================================

// Start 启动后台轮询, 启动时立即执行一次
func (p *Poller) Start(ctx context.Context) {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runLoop(ctx, p.stopCh)
	}()

	p.log.Info("[Poller] started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("max_catch_up", p.cfg.MaxCatchUp),
		zap.Bool("quarter_only", p.cfg.QuarterOnly))
}

// Stop 停止并等待当前 Tick 结束
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
	p.running = false
	p.log.Info("[Poller] stopped")
}

func (p *Poller) runLoop(ctx context.Context, stopCh <-chan struct{}) {
	p.Tick(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// =============================================================================
// 核心逻辑
// =============================================================================

// Tick 处理到当前时刻为止尚未处理的分钟, 返回查询错误
func (p *Poller) Tick(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks.Add(1)

	now := p.clock.Now().UTC().Truncate(time.Minute)
	start := now
	if last := p.lastMinute(); !last.IsZero() {
		start = last.Add(time.Minute)
	}
	if start.After(now) {
		return nil
	}
	if oldest := now.Add(-p.cfg.MaxCatchUp); start.Before(oldest) {
		p.log.Warn("[Poller] catch-up window exceeded, skipping minutes",
			zap.Time("from", start),
			zap.Time("resume", oldest))
		start = oldest
	}

	for m := start; !m.After(now); m = m.Add(time.Minute) {
		if p.cfg.QuarterOnly && !schedule.IsQuarterHour(m.Minute()) {
			p.last.Store(m.Unix())
			continue
		}
		if err := p.processMinute(ctx, m); err != nil {
			p.log.Error("[Poller] find due alarms failed", zap.Time("minute", m), zap.Error(err))
			return err
		}
		p.last.Store(m.Unix())
		p.minutes.Add(1)
	}
	return nil
}

// processMinute 匹配并发布一分钟内的到点闹钟
func (p *Poller) processMinute(ctx context.Context, minute time.Time) error {
	hour, mm, day := schedule.SlotOf(minute)
	due, err := p.finder.FindDueAlarms(ctx, hour, mm, day)
	if err != nil {
		return err
	}
	p.due.Add(int64(len(due)))

	for _, d := range due {
		if p.claimer != nil {
			ok, err := p.claimer.Claim(ctx, d.Definition.ID, minute)
			if err != nil {
				// 抢占不可用时宁可重复也不漏发
				p.log.Warn("[Poller] claim failed", zap.Int64("definition_id", d.Definition.ID), zap.Error(err))
			} else if !ok {
				p.duplicates.Add(1)
				continue
			}
		}

		ev := notify.NewDueAlarmEvent(p.ids.Next(), minute, d)
		if err := p.publisher.Publish(ctx, ev); err != nil {
			p.failed.Add(1)
			p.log.Error("[Poller] publish failed",
				zap.Int64("event_id", ev.EventID),
				zap.Int64("definition_id", ev.DefinitionID),
				zap.Error(err))
			continue
		}
		p.published.Add(1)
	}

	if len(due) > 0 {
		p.log.Info("[Poller] minute processed",
			zap.Time("minute", minute),
			zap.Int("due", len(due)))
	}
	return nil
}

func (p *Poller) lastMinute() time.Time {
	sec := p.last.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// Stats 获取统计, Tick 进行中也不阻塞
func (p *Poller) Stats() Stats {
	return Stats{
		Ticks:      p.ticks.Load(),
		Minutes:    p.minutes.Load(),
		Due:        p.due.Load(),
		Published:  p.published.Load(),
		Failed:     p.failed.Load(),
		Duplicates: p.duplicates.Load(),
		LastMinute: p.lastMinute(),
	}
}
