// Package limiter 提供固定窗口限流器（Redis 与内存两种实现）及 gin 中间件。
package limiter

import (
	"context"
	"fmt"
	"time"
)

// LimitResult 限流结果
type LimitResult struct {
	Allowed       bool          `json:"allowed"`        // 是否允许通过
	Remaining     int64         `json:"remaining"`      // 剩余配额
	RetryAfter    time.Duration `json:"retry_after"`    // 建议重试时间
	TotalRequests int64         `json:"total_requests"` // 当前窗口内请求数
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查是否允许请求通过
	Allow(ctx context.Context, key string) (*LimitResult, error)

	// AllowN 检查是否允许N个请求通过
	AllowN(ctx context.Context, key string, n int64) (*LimitResult, error)

	// Reset 重置限流状态
	Reset(ctx context.Context, key string) error

	// GetInfo 获取限流信息
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)
}

// LimitInfo 限流信息
type LimitInfo struct {
	Limit     int64         `json:"limit"`      // 限流阈值
	Remaining int64         `json:"remaining"`  // 剩余配额
	Window    time.Duration `json:"window"`     // 时间窗口
	ResetTime time.Time     `json:"reset_time"` // 重置时间
}

// Config 限流配置
type Config struct {
	Rate      int64         `json:"rate"`       // 每个窗口允许的请求数
	Window    time.Duration `json:"window"`     // 时间窗口，至少 1 秒
	KeyPrefix string        `json:"key_prefix"` // Key前缀
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s")
	}
	return nil
}

// windowBounds 返回 now 所在窗口的起点与终点（按整秒对齐）
func windowBounds(now time.Time, window time.Duration) (time.Time, time.Time) {
	seconds := int64(window.Seconds())
	start := (now.Unix() / seconds) * seconds
	return time.Unix(start, 0), time.Unix(start+seconds, 0)
}
