package chain

import (
	"sync"
	"time"
)

// ManualClock 手动推进的时钟，测试与本地联调使用
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock 以 start 为起点创建时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC().Truncate(time.Second)}
}

// Now 当前时间
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance 向前推进，负值忽略，时间不回退
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set 设置到指定时间，早于当前时间时不生效
func (c *ManualClock) Set(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t.UTC()
	}
	return c.now
}
