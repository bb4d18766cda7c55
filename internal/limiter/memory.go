package limiter

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryFixedWindowLimiter 单实例内存固定窗口限流器，语义与 FixedWindowLimiter 一致
type MemoryFixedWindowLimiter struct {
	mu      sync.Mutex
	config  *Config
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemoryFixedWindowLimiter 创建内存限流器
func NewMemoryFixedWindowLimiter(config *Config) (*MemoryFixedWindowLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &MemoryFixedWindowLimiter{
		config:  config,
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}, nil
}

// Allow 检查是否允许请求通过
func (l *MemoryFixedWindowLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return l.AllowN(ctx, key, 1)
}

// current 返回 key 的当前窗口，过期窗口重置；需持有锁
func (l *MemoryFixedWindowLimiter) current(key string, now time.Time) (*memoryWindow, time.Time) {
	start, end := windowBounds(now, l.config.Window)
	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &memoryWindow{start: start}
		l.windows[key] = w
	}
	return w, end
}

// AllowN 检查是否允许N个请求通过
func (l *MemoryFixedWindowLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, end := l.current(key, now)

	if w.count+n > l.config.Rate {
		return &LimitResult{
			Allowed:       false,
			Remaining:     l.config.Rate - w.count,
			RetryAfter:    end.Sub(now),
			TotalRequests: w.count,
		}, nil
	}

	w.count += n
	return &LimitResult{
		Allowed:       true,
		Remaining:     l.config.Rate - w.count,
		TotalRequests: w.count,
	}, nil
}

// Reset 重置限流状态
func (l *MemoryFixedWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// GetInfo 获取限流信息
func (l *MemoryFixedWindowLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, end := l.current(key, l.now())
	return &LimitInfo{
		Limit:     l.config.Rate,
		Remaining: l.config.Rate - w.count,
		Window:    l.config.Window,
		ResetTime: end,
	}, nil
}
