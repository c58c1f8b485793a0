package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue 基于 Redis Pub/Sub 的消息队列
// 消息不持久化，订阅者离线期间的消息会丢失
type RedisQueue struct {
	logger  *slog.Logger
	client  redis.UniversalClient
	timeout time.Duration

	mu     sync.Mutex
	subs   []*redis.PubSub
	wg     sync.WaitGroup
	closed bool
}

// 确保 RedisQueue 实现 MessageQueue 接口
var _ MessageQueue = (*RedisQueue)(nil)

// NewRedisQueue 创建 Redis 消息队列，client 的生命周期由调用方管理
func NewRedisQueue(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{
		logger:  slog.Default().With("module", "redis-queue"),
		client:  client,
		timeout: 3 * time.Second,
	}
}

// Publish 发布消息
func (q *RedisQueue) Publish(topic string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	receivers, err := q.client.Publish(ctx, topic, message).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	q.logger.Debug("message sent", "topic", topic, "receivers", receivers)
	return nil
}

// Subscribe 订阅 topic，handler 在独立 goroutine 中串行调用
func (q *RedisQueue) Subscribe(topic string, handler func(message []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("redis queue is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	pubsub := q.client.Subscribe(ctx, topic)
	// 等待订阅确认，避免订阅前发布的消息被误认为已送达
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	q.subs = append(q.subs, pubsub)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for msg := range pubsub.Channel() {
			if err := handler([]byte(msg.Payload)); err != nil {
				q.logger.Error("failed to handle message", "topic", msg.Channel, "error", err)
			}
		}
	}()

	return nil
}

// Close 关闭所有订阅，不关闭底层 client
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	subs := q.subs
	q.subs = nil
	q.mu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	q.wg.Wait()

	return firstErr
}
