package mq

import (
	"context"
	"sync"
)

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NopPublisher 不发布任何事件（MQ_DRIVER=none）
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

// RecordingPublisher 在内存中记录已发布事件，供测试与本地调试使用
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*Event
	Err    error
}

// Publish 记录事件；Err 非空时返回该错误且不记录
func (p *RecordingPublisher) Publish(ctx context.Context, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

// Close 无操作
func (p *RecordingPublisher) Close() error { return nil }

// Events 返回已记录事件的副本
func (p *RecordingPublisher) Events() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Event, len(p.events))
	copy(out, p.events)
	return out
}

// Types 返回已记录事件的类型序列
func (p *RecordingPublisher) Types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
