package server

import (
	"context"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/reservation/internal/action"
	"github.com/Zereker/reservation/internal/api/consumer"
	"github.com/Zereker/reservation/internal/api/http"
	"github.com/Zereker/reservation/internal/api/mcp"
	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/internal/storage"
	"github.com/Zereker/reservation/pkg/log"
	"github.com/Zereker/reservation/pkg/mq"
	"github.com/Zereker/reservation/pkg/redis"
)

const version = "0.1.0"

// errStdinClosed 结束 errgroup，stdin 关闭后整个进程退出
var errStdinClosed = errors.New("mcp stdin closed")

// Server represents the reservation server
type Server struct {
	config       Config
	logger       *slog.Logger
	store        *storage.MemoryStore
	reservations *action.Reservations
	queue        mq.MessageQueue // 事件后端，backend 为 none 时为 nil
	replies      mq.MessageQueue // 命令回复，仅在 queue 为 nil 且启用 kafka 时单独创建
	consumer     *consumer.Consumer
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initReservations(); err != nil {
		return nil, errors.WithMessage(err, "init reservations failed")
	}

	if err := server.initConsumer(); err != nil {
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// MCP 使用 stdout 传输协议消息，日志改走 stderr
	logCfg := s.config.Log
	if s.config.Server.Mode != "http" {
		if c := strings.ToLower(logCfg.Console); c == "" || c == "stdout" {
			logCfg.Console = "stderr"
		}
	}

	// Initialize log first
	if err := log.Init(logCfg); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	// Create logger for this module
	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	// Initialize Redis
	s.logger.Info("initializing redis")
	if err := redis.Init(s.config.Redis); err != nil {
		return errors.WithMessage(err, "failed to init redis")
	}

	// Initialize event queue
	s.logger.Info("initializing event queue", "backend", s.config.Events.Backend)
	queue, err := newEventQueue(s.config)
	if err != nil {
		return errors.WithMessage(err, "failed to init event queue")
	}
	s.queue = queue

	return nil
}

// newEventQueue 按 events.backend 创建消息队列
func newEventQueue(conf Config) (mq.MessageQueue, error) {
	switch conf.Events.Backend {
	case BackendMemory:
		return mq.NewInMemoryQueue(), nil
	case BackendKafka:
		producer, err := mq.NewKafkaProducer(conf.Kafka)
		if err != nil {
			return nil, err
		}
		return producer, nil
	case BackendRedis:
		client := redis.Client()
		if client == nil {
			return nil, errors.New("redis is not initialized")
		}
		return mq.NewRedisQueue(client), nil
	default:
		return nil, nil
	}
}

// initReservations initializes the store and the admission service
func (s *Server) initReservations() error {
	s.logger.Info("initializing reservations")

	s.store = storage.NewMemoryStore(domain.SystemClock)

	opts := []action.Option{action.WithClock(domain.SystemClock)}
	if s.queue != nil {
		opts = append(opts, action.WithEvents(action.NewEventPublisher(s.queue, s.config.Events.TopicPrefix, domain.SystemClock)))
	}

	s.reservations = action.NewReservations(s.store, opts...)
	s.logger.Info("admission chain", "steps", s.reservations.Steps())
	return nil
}

// initConsumer initializes the command consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	replies := s.queue
	if replies == nil && s.config.Kafka.Enabled && len(s.config.Kafka.Consumers) > 0 {
		producer, err := mq.NewKafkaProducer(s.config.Kafka)
		if err != nil {
			return errors.WithMessage(err, "failed to create reply producer")
		}
		s.replies = producer
		replies = producer
	}

	c, err := consumer.NewConsumer(s.reservations, replies, consumer.Config{
		Kafka:      s.config.Kafka,
		ReplyTopic: s.config.Commands.ReplyTopic,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}

	if len(s.config.Commands.Topics) > 0 {
		if err := c.Listen(s.queue, s.config.Commands.Topics...); err != nil {
			return errors.WithMessage(err, "failed to listen for commands")
		}
	}

	s.consumer = c
	return nil
}

// Start starts the server based on configuration mode
func (s *Server) Start() error {
	s.logger.Info("starting", "mode", s.config.Server.Mode, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.logger.Info("received shutdown signal")
		cancel()
	}()

	return s.Run(ctx)
}

// Run runs the configured servers until ctx is cancelled or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// Start consumer
	if s.consumer != nil {
		g.Go(func() error {
			return s.runConsumer(ctx)
		})
	}

	switch s.config.Server.Mode {
	case "http":
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
	case "mcp":
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	case "both":
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	default:
		return errors.Errorf("unknown mode: %s", s.config.Server.Mode)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errStdinClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	// Stop consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
		}
	}

	for _, queue := range []mq.MessageQueue{s.queue, s.replies} {
		if queue == nil {
			continue
		}
		if err := queue.Close(); err != nil {
			s.logger.Error("failed to close message queue", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		s.logger.Error("failed to close redis", "error", err)
	}

	if s.store != nil {
		stats := s.store.Stats()
		s.logger.Info("store dropped", "rooms", stats.Rooms, "reservations", stats.Reservations, "last_id", stats.LastID)
	}

	return nil
}

func (s *Server) httpConfig() http.ServerConfig {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Port = s.config.Server.Port
	serverCfg.ReadTimeout, serverCfg.WriteTimeout = s.config.HTTP.Timeouts(30 * time.Second)
	serverCfg.RateLimit = s.config.HTTP.RateLimit
	serverCfg.RateBurst = s.config.HTTP.RateBurst
	serverCfg.TrustProxy = s.config.HTTP.TrustProxy
	return serverCfg
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	srv := http.NewServer(s.reservations, s.httpConfig())

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runMCPServer(ctx context.Context) error {
	server := mcp.NewServer(s.reservations, mcp.ServerConfig{
		Name:    "reservation",
		Version: version,
	})

	err := server.RunStdio(ctx)
	switch {
	case err == nil:
		return errStdinClosed
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return errors.WithMessage(err, "mcp server error")
	}
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return errors.WithMessage(err, "consumer start error")
	}

	// Wait for context cancellation
	<-ctx.Done()

	return s.consumer.Stop()
}
