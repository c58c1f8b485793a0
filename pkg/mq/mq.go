// Package mq 提供消息队列抽象，预约事件和命令回复都经由它投递。
package mq

// MessageQueue 消息队列接口
type MessageQueue interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string, handler func(message []byte) error) error
	Close() error
}

// KeyedPublisher 支持分区 key 的队列，同一 key 的消息保持顺序
type KeyedPublisher interface {
	PublishWithKey(topic, key string, message []byte) error
}
