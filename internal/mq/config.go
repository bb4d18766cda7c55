// Package mq 负责把领域事件发布到消息中间件（RabbitMQ 或 Kafka）。
package mq

import (
	"fmt"
	"time"
)

// RabbitConfig RabbitMQ 发布配置
type RabbitConfig struct {
	URL      string
	Exchange string

	ConnectionTimeout time.Duration
	HeartbeatInterval time.Duration

	// 发布确认
	ConfirmTimeout time.Duration

	// 重试配置
	MaxRetryAttempts int
	RetryInterval    time.Duration
}

// DefaultRabbitConfig 返回默认配置
func DefaultRabbitConfig(url, exchange string) *RabbitConfig {
	return &RabbitConfig{
		URL:               url,
		Exchange:          exchange,
		ConnectionTimeout: 10 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		ConfirmTimeout:    5 * time.Second,
		MaxRetryAttempts:  2,
		RetryInterval:     200 * time.Millisecond,
	}
}

// Validate 验证配置
func (c *RabbitConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("exchange is required")
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection_timeout must be greater than 0")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be greater than 0")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be >= 0")
	}
	return nil
}

// KafkaConfig Kafka 发布配置
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Validate 验证配置
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}
