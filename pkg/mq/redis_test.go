package mq

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisQueueUnreachable(t *testing.T) {
	client := unreachableRedis()
	defer func() { _ = client.Close() }()

	q := NewRedisQueue(client)
	q.timeout = 500 * time.Millisecond

	assert.Error(t, q.Publish("reservation.created", []byte(`{}`)))
	assert.Error(t, q.Subscribe("reservation.commands", func([]byte) error { return nil }))
	assert.NoError(t, q.Close())
}

func TestRedisQueueClosed(t *testing.T) {
	client := unreachableRedis()
	defer func() { _ = client.Close() }()

	q := NewRedisQueue(client)
	assert.NoError(t, q.Close())
	assert.Error(t, q.Subscribe("reservation.commands", func([]byte) error { return nil }))
}
