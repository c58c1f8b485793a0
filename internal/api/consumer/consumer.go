package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/pkg/log"
	"github.com/Zereker/reservation/pkg/mq"
)

// Consumer 预约命令消费者
type Consumer struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	replies    mq.MessageQueue
	replyTopic string
	consumers  []*mq.KafkaConsumer
}

// Config 消费者配置
type Config struct {
	Kafka mq.KafkaConfig

	// ReplyTopic 命令未指定 reply_to 时使用，为空则丢弃回复
	ReplyTopic string
}

// NewConsumer 创建消费者，replies 用于发送命令回复，可以为 nil
func NewConsumer(reservations *action.Reservations, replies mq.MessageQueue, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger:     log.Logger("consumer"),
		dispatcher: NewDispatcher(reservations),
		replies:    replies,
		replyTopic: cfg.ReplyTopic,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, consumer not started")
		return c, nil
	}

	for _, cc := range cfg.Kafka.Consumers {
		consumer, err := mq.NewKafkaConsumer(cfg.Kafka, cc, c.HandleMessage)
		if err != nil {
			_ = c.Stop()
			return nil, errors.WithMessagef(err, "create consumer %s", cc.Name)
		}
		c.consumers = append(c.consumers, consumer)
	}

	return c, nil
}

// Listen 通过任意 MessageQueue 订阅命令 topic（memory、redis 后端）
func (c *Consumer) Listen(queue mq.MessageQueue, topics ...string) error {
	for _, topic := range topics {
		err := queue.Subscribe(topic, func(message []byte) error {
			return c.HandleMessage(context.Background(), topic, message)
		})
		if err != nil {
			return errors.WithMessagef(err, "subscribe %s", topic)
		}
		c.logger.Info("listening for commands", "topic", topic)
	}
	return nil
}

// Start 启动所有消费者
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	g, ctx := errgroup.WithContext(ctx)
	for _, consumer := range c.consumers {
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop 停止所有消费者
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}

// HandleMessage 处理一条命令消息。命令失败只体现在回复里，不会返回错误，
// 以免阻塞消费位点。
func (c *Consumer) HandleMessage(ctx context.Context, topic string, message []byte) error {
	cmd, err := decodeCommand(message)

	var reply Reply
	if err != nil {
		reply = Reply{
			Type:          cmd.Type,
			CorrelationID: cmd.CorrelationID,
			Error:         err.Error(),
			Code:          domain.ErrorCode(err),
		}
	} else {
		reply = c.dispatcher.Dispatch(ctx, cmd)
	}

	c.logger.Info("command handled",
		"topic", topic,
		"type", reply.Type,
		"correlation_id", reply.CorrelationID,
		"ok", reply.OK,
		"code", reply.Code,
	)

	c.reply(cmd.ReplyTo, reply)
	return nil
}

func (c *Consumer) reply(replyTo string, reply Reply) {
	topic := replyTo
	if topic == "" {
		topic = c.replyTopic
	}
	if topic == "" || c.replies == nil {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error("marshal reply failed", "error", err)
		return
	}

	if keyed, ok := c.replies.(mq.KeyedPublisher); ok && reply.CorrelationID != "" {
		err = keyed.PublishWithKey(topic, reply.CorrelationID, data)
	} else {
		err = c.replies.Publish(topic, data)
	}
	if err != nil {
		c.logger.Warn("publish reply failed", "topic", topic, "correlation_id", reply.CorrelationID, "error", err)
	}
}
