package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型，同时用作 RabbitMQ routing key
type EventType string

const (
	EventStockMovementRecorded EventType = "stock.movement_recorded"
	EventStockLow              EventType = "stock.low"
	EventOrderCreated          EventType = "order.created"
	EventOrderStatusChanged    EventType = "order.status_changed"
	EventPaymentStatusChanged  EventType = "order.payment_status_changed"
)

// Event 事件信封
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Key        string          `json:"key"` // 聚合ID，Kafka 按此分区
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent 创建事件并序列化负载
func NewEvent(t EventType, key string, payload any) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// MovementRecordedPayload 库存流水已记录
type MovementRecordedPayload struct {
	MovementID    string `json:"movement_id"`
	ProductID     string `json:"product_id"`
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
}

// LowStockPayload 库存低于阈值
type LowStockPayload struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
}

// OrderCreatedPayload 订单已创建
type OrderCreatedPayload struct {
	OrderID    int64  `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Total      string `json:"total"`
	ItemCount  int    `json:"item_count"`
}

// StatusChangedPayload 订单状态或支付状态变更
type StatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}
