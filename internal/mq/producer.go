package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitPublisher 以发布确认模式把事件投递到 topic 交换机，routing key 为事件类型。
// 连接断开时在下一次发布前重连。
type RabbitPublisher struct {
	config *RabbitConfig
	logger *zap.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewRabbitPublisher 建立连接、声明交换机并开启发布确认
func NewRabbitPublisher(config *RabbitConfig, logger *zap.Logger) (*RabbitPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rabbitmq config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &RabbitPublisher{config: config, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect 需持有锁调用（构造时除外）
func (p *RabbitPublisher) connect() error {
	conn, err := amqp.DialConfig(p.config.URL, amqp.Config{
		Heartbeat: p.config.HeartbeatInterval,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.config.ConnectionTimeout),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.config.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.config.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set confirm mode: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("rabbitmq publisher connected", zap.String("exchange", p.config.Exchange))
	return nil
}

// buildPublishing 构建 AMQP 消息
func buildPublishing(event *Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}, nil
}

// Publish 发布事件，失败时按配置重试
func (p *RabbitPublisher) Publish(ctx context.Context, event *Event) error {
	publishing, err := buildPublishing(event)
	if err != nil {
		return err
	}

	maxAttempts := p.config.MaxRetryAttempts + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = p.publishOnce(ctx, string(event.Type), publishing); lastErr == nil {
			return nil
		}

		p.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(lastErr))

		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(p.config.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", maxAttempts, lastErr)
}

// publishOnce 单次发布并等待 broker 确认
func (p *RabbitPublisher) publishOnce(ctx context.Context, routingKey string, publishing amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("publisher is closed")
	}
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	confirmCtx, cancel := context.WithTimeout(ctx, p.config.ConfirmTimeout)
	defer cancel()

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(confirmCtx, p.config.Exchange, routingKey, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	acked, err := dc.WaitContext(confirmCtx)
	if err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}
	if !acked {
		return errors.New("message was nacked by broker")
	}
	return nil
}

// Close 关闭通道与连接
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
