package clock

import (
	"sync"
	"time"
)

// Clock 时钟来源
// 激活窗口、收取上限、拍卖截止这些时间窗语义都依赖"现在几点"，
// 把时钟做成可替换的依赖，测试里才能精确拨动时间
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System 真实墙钟
func System() Clock {
	return systemClock{}
}

// Manual 手动时钟，只在测试里使用
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{t: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
}
