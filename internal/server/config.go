package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Zereker/reservation/pkg/log"
	"github.com/Zereker/reservation/pkg/mq"
	"github.com/Zereker/reservation/pkg/redis"
)

// Event backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendKafka  = "kafka"
	BackendRedis  = "redis"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig   `toml:"server"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      log.Config     `toml:"log"`
	Events   EventsConfig   `toml:"events"`
	Commands CommandsConfig `toml:"commands"`
	Kafka    mq.KafkaConfig `toml:"kafka"`
	Redis    redis.Config   `toml:"redis"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Mode string `toml:"mode"` // http, mcp, or both
	Port int    `toml:"port"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	ReadTimeout  string  `toml:"read_timeout"`
	WriteTimeout string  `toml:"write_timeout"`
	RateLimit    float64 `toml:"rate_limit"` // 每个客户端每秒请求数，0 表示不限流
	RateBurst    int     `toml:"rate_burst"`
	TrustProxy   bool    `toml:"trust_proxy"` // 仅在反向代理之后开启
}

// EventsConfig 预约事件配置
type EventsConfig struct {
	Backend     string `toml:"backend"` // none, memory, kafka or redis
	TopicPrefix string `toml:"topic_prefix"`
}

// CommandsConfig 命令消费配置
type CommandsConfig struct {
	// ReplyTopic 命令未携带 reply_to 时的回复 topic
	ReplyTopic string `toml:"reply_topic"`
	// Topics 通过事件后端（memory、redis）订阅的命令 topic，kafka 消费者在 [kafka] 中配置
	Topics []string `toml:"topics"`
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Mode == "" {
		s.Mode = "http" // default mode
	}
	switch s.Mode {
	case "http", "mcp", "both":
		// valid
	default:
		return fmt.Errorf("invalid mode: %s, must be http, mcp, or both", s.Mode)
	}
	if s.Mode != "mcp" && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	return nil
}

// Validate checks http configuration
func (c *HTTPConfig) Validate() error {
	for name, value := range map[string]string{
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return fmt.Errorf("%s is invalid: %q", name, value)
		}
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if c.RateBurst < 0 {
		return fmt.Errorf("rate_burst must not be negative")
	}
	return nil
}

// Timeouts returns the read and write timeouts, falling back to def.
func (c *HTTPConfig) Timeouts(def time.Duration) (read, write time.Duration) {
	read, write = def, def
	if d, err := time.ParseDuration(c.ReadTimeout); err == nil {
		read = d
	}
	if d, err := time.ParseDuration(c.WriteTimeout); err == nil {
		write = d
	}
	return read, write
}

// Validate checks events configuration
func (c *EventsConfig) Validate() error {
	c.Backend = strings.ToLower(c.Backend)
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	switch c.Backend {
	case BackendNone, BackendMemory, BackendKafka, BackendRedis:
	default:
		return fmt.Errorf("invalid backend: %s, must be none, memory, kafka or redis", c.Backend)
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "reservation"
	}
	return nil
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	switch c.Events.Backend {
	case BackendKafka:
		if !c.Kafka.Enabled {
			return fmt.Errorf("events: backend kafka requires [kafka] enabled")
		}
	case BackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("events: backend redis requires [redis] enabled")
		}
	}

	if len(c.Commands.Topics) > 0 && (c.Events.Backend == BackendNone || c.Events.Backend == BackendKafka) {
		return fmt.Errorf("commands: topics need a memory or redis events backend, use [kafka] consumers for kafka")
	}

	return nil
}

// LoadConfig reads and parses the configuration file
func LoadConfig(filename string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
