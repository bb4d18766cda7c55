package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/mq"
)

// publishTimeout 单个事件的发布时限
const publishTimeout = 3 * time.Second

// eventEmitter 在业务操作成功后发布领域事件。
// 发布失败只记录日志，不影响已经提交的业务结果。
type eventEmitter struct {
	publisher mq.Publisher
	logger    *zap.Logger
}

func newEventEmitter(publisher mq.Publisher, logger *zap.Logger) eventEmitter {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return eventEmitter{publisher: publisher, logger: logger}
}

func (e eventEmitter) emit(ctx context.Context, t mq.EventType, key string, payload any) {
	event, err := mq.NewEvent(t, key, payload)
	if err != nil {
		e.logger.Error("failed to build event", zap.String("event_type", string(t)), zap.Error(err))
		return
	}

	// 请求结束不应中断已提交操作的事件发布
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("event_type", string(t)),
			zap.String("event_id", event.ID),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
