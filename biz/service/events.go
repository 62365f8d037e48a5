package service

import (
	"context"

	"go.uber.org/zap"
)

// 事件类型，拼在路由键前缀后面
const (
	EventTagCreated  = "created"
	EventTagUpdated  = "updated"
	EventTagDeleted  = "deleted"
	EventTagImported = "imported"
)

// EventPublisher 发布标签变更事件，rabbitmq.Publisher 满足这个接口
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// TagEvent 标签变更事件的消息体
type TagEvent struct {
	Type     string   `json:"type"`
	TagID    string   `json:"tagId,omitempty"`
	ParentID string   `json:"parentId,omitempty"`
	IDs      []string `json:"ids,omitempty"` // 删除子树时被删除的全部 ID
	Source   string   `json:"source,omitempty"`
	At       int64    `json:"at"`
}

// publish 发布事件，失败只记录日志，不影响已经完成的写操作
func (s *tagService) publish(ctx context.Context, ev TagEvent) {
	if s.publisher == nil {
		return
	}
	ev.At = s.now().UnixMilli()
	key := s.routingPrefix + ev.Type
	if err := s.publisher.Publish(ctx, key, ev); err != nil {
		s.logger.Warn("发布标签事件失败", zap.String("routingKey", key), zap.String("tagId", ev.TagID), zap.Error(err))
	}
}
