package schedule

import (
	"sync"
	"time"
)

// Clock 时钟接口, 测试时替换
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock 手动拨动的时钟
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock 创建固定时钟
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set 设置当前时间
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance 拨快
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// SlotOf 取 UTC 时、分、星期
func SlotOf(now time.Time) (hour, minute int, day time.Weekday) {
	u := now.UTC()
	return u.Hour(), u.Minute(), u.Weekday()
}
