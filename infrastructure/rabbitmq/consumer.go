package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler 处理一条消息。
// 返回 nil 时 Ack；返回被 Permanent 包装的错误时直接丢弃；
// 其他错误重新入队一次，再次失败后丢弃。
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// ErrPermanent 标记重试也不会成功的错误 (消息格式错误等)
var ErrPermanent = errors.New("permanent failure")

// Permanent 把 err 标记为不可重试
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Consumer 从一个队列中消费消息
type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queueName   string
	consumerTag string
	handler     MessageHandler
	logger      *zap.Logger
}

// ConsumerOptions 用于配置 Consumer
type ConsumerOptions struct {
	ExchangeName string // 必须: 绑定的交换机名称
	ExchangeType string // 可选: 默认 topic
	QueueName    string // 必须: 队列名称
	RoutingKey   string // 必须: 绑定队列到交换机的路由键
	ConsumerTag  string // 可选: 为空时由服务器生成
	Prefetch     int    // 可选: 未确认消息上限，默认 1
}

// NewConsumer 连接 RabbitMQ，声明交换机和持久化队列并完成绑定。
// 调用 Run 之后才开始消费。
func NewConsumer(amqpURL string, handler MessageHandler, opts ConsumerOptions, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		return nil, errors.New("rabbitmq: handler 不能为空")
	}
	if opts.ExchangeType == "" {
		opts.ExchangeType = DefaultExchangeType
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 1
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", zap.Error(err))
		return nil, fmt.Errorf("rabbitmq: 连接失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: 打开通道失败: %w", err)
	}
	cleanup := func() {
		ch.Close()
		conn.Close()
	}

	if err := declareExchange(ch, opts.ExchangeName, opts.ExchangeType); err != nil {
		cleanup()
		return nil, err
	}
	q, err := ch.QueueDeclare(
		opts.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("rabbitmq: 声明队列 %s 失败: %w", opts.QueueName, err)
	}
	if err := ch.QueueBind(q.Name, opts.RoutingKey, opts.ExchangeName, false, nil); err != nil {
		cleanup()
		return nil, fmt.Errorf("rabbitmq: 绑定队列 %s 到 %s (%s) 失败: %w", q.Name, opts.ExchangeName, opts.RoutingKey, err)
	}
	if err := ch.Qos(opts.Prefetch, 0, false); err != nil {
		cleanup()
		return nil, fmt.Errorf("rabbitmq: 设置 prefetch 失败: %w", err)
	}
	logger.Info("RabbitMQ 队列绑定完成",
		zap.String("queue", q.Name),
		zap.String("exchange", opts.ExchangeName),
		zap.String("routingKey", opts.RoutingKey),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queueName:   q.Name,
		consumerTag: opts.ConsumerTag,
		handler:     handler,
		logger:      logger.Named("rabbitmq_consumer").With(zap.String("queue", q.Name)),
	}, nil
}

// Run 阻塞消费直到 ctx 被取消或通道关闭，返回前关闭连接
func (c *Consumer) Run(ctx context.Context) error {
	defer c.close()

	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queueName,
		c.consumerTag,
		false, // 手动确认
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: 启动消费失败: %w", err)
	}
	c.logger.Info("等待 RabbitMQ 消息...")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("收到关闭信号，消费者正在停止")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("rabbitmq: 消息通道被关闭")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.handler(ctx, d)
	ack, requeue := settle(err, d.Redelivered)
	if ack {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("发送 Ack 失败", zap.Error(ackErr))
		}
		return
	}
	c.logger.Error("消息处理失败，发送 Nack",
		zap.String("messageId", d.MessageId),
		zap.Bool("requeue", requeue),
		zap.Error(err),
	)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.logger.Error("发送 Nack 失败", zap.Error(nackErr))
	}
}

// settle 根据处理结果决定确认方式
func settle(err error, redelivered bool) (ack, requeue bool) {
	switch {
	case err == nil:
		return true, false
	case errors.Is(err, ErrPermanent):
		return false, false
	default:
		return false, !redelivered
	}
}

func (c *Consumer) close() {
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.logger.Error("关闭 RabbitMQ 通道失败", zap.Error(err))
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.logger.Error("关闭 RabbitMQ 连接失败", zap.Error(err))
	}
	c.logger.Info("RabbitMQ Consumer 已关闭")
}
