package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"tagtree/pkg/idgen"
)

// DefaultExchangeType 标签事件按 tag.<类型> 路由，使用 topic 交换机
const DefaultExchangeType = amqp.ExchangeTopic

// Publisher 把消息以 JSON 发布到同一个交换机
type Publisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	ids          idgen.Generator
	logger       *zap.Logger

	// amqp.Channel 不能被多个 goroutine 同时用于发布
	mu sync.Mutex
}

// NewPublisher 连接 RabbitMQ 并声明交换机。
// exchangeType 为空时使用 topic。
func NewPublisher(amqpURL, exchangeName, exchangeType string, ids idgen.Generator, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exchangeType == "" {
		exchangeType = DefaultExchangeType
	}
	if ids == nil {
		ids = idgen.NewULID()
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", zap.Error(err))
		return nil, fmt.Errorf("rabbitmq: 连接失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Error("无法打开 RabbitMQ 通道", zap.Error(err))
		return nil, fmt.Errorf("rabbitmq: 打开通道失败: %w", err)
	}
	if err := declareExchange(ch, exchangeName, exchangeType); err != nil {
		ch.Close()
		conn.Close()
		logger.Error("无法声明 RabbitMQ 交换机", zap.String("exchange", exchangeName), zap.Error(err))
		return nil, err
	}
	logger.Info("RabbitMQ 交换机声明成功", zap.String("exchange", exchangeName), zap.String("type", exchangeType))

	return &Publisher{
		conn:         conn,
		channel:      ch,
		exchangeName: exchangeName,
		ids:          ids,
		logger:       logger.Named("rabbitmq_publisher"),
	}, nil
}

func declareExchange(ch *amqp.Channel, name, kind string) error {
	err := ch.ExchangeDeclare(
		name,
		kind,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: 声明交换机 %s 失败: %w", name, err)
	}
	return nil
}

// newPublishing 把消息编码为持久化的 JSON 消息
func newPublishing(message any, messageID string, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: 消息序列化失败: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    now,
		Body:         body,
	}, nil
}

// Publish 发布消息到指定的 routingKey，message 需要能被 json.Marshal
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	id, err := p.ids.NewID()
	if err != nil {
		return fmt.Errorf("rabbitmq: 生成消息 ID 失败: %w", err)
	}
	msg, err := newPublishing(message, id, time.Now())
	if err != nil {
		p.logger.Error("消息序列化为 JSON 失败", zap.String("routingKey", routingKey), zap.Error(err))
		return err
	}

	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx, p.exchangeName, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("发布消息到 RabbitMQ 失败",
			zap.String("exchange", p.exchangeName),
			zap.String("routingKey", routingKey),
			zap.Error(err),
		)
		return fmt.Errorf("rabbitmq: 发布消息失败: %w", err)
	}

	p.logger.Debug("消息发布成功", zap.String("routingKey", routingKey), zap.String("messageId", id))
	return nil
}

// Close 关闭通道和连接
func (p *Publisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("关闭 RabbitMQ 通道失败", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error("关闭 RabbitMQ 连接失败", zap.Error(err))
		}
	}
	p.logger.Info("RabbitMQ Publisher 已关闭")
}
