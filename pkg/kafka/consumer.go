package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "AnchorPull/pkg/logger"
)

// MessageHandler consumes messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type inbound struct {
	topic string
	msg   kafka.Message
}

// Consumer reads registered topics through a shared worker pool. Handler
// errors are retried with jittered backoff; the offset is committed only
// after the handler succeeds or retries are exhausted, so a poison message
// cannot wedge a partition.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	msgs     chan inbound

	cancel   context.CancelFunc
	readerWg sync.WaitGroup
	workerWg sync.WaitGroup
	stopOnce sync.Once
	l        *applogger.Logger
}

// NewConsumer builds a consumer from the given options. Brokers are
// mandatory.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	registerConsumerMetrics()

	return &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		msgs:     make(chan inbound, cfg.BufferSize),
	}, nil
}

// SetLogger injects a structured logger.
func (c *Consumer) SetLogger(l *applogger.Logger) { c.l = l }

// RegisterHandler binds a handler to its topic. Call before Start; the
// first registration per topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.warn("handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and launches the worker pool.
func (c *Consumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}
	for topic, reader := range c.readers {
		c.readerWg.Add(1)
		go c.fetchLoop(ctx, topic, reader)
	}

	c.info("kafka consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
	)
	return nil
}

// Stop drains the consumer: readers exit, queued messages are handled, then
// readers close. Returns ctx.Err if the drain outlives ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.readerWg.Wait()
		close(c.msgs)

		done := make(chan struct{})
		go func() {
			c.workerWg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("consumer drain: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.warn("close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) fetchLoop(ctx context.Context, topic string, reader *kafka.Reader) {
	defer c.readerWg.Done()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.warn("fetch message", applogger.String("topic", topic), applogger.Error(err))
			continue
		}
		select {
		case c.msgs <- inbound{topic: topic, msg: msg}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.workerWg.Done()
	for in := range c.msgs {
		c.handle(ctx, in)
	}
}

func (c *Consumer) handle(ctx context.Context, in inbound) {
	handler := c.handlers[in.topic]
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.warn("handler panic", applogger.String("topic", in.topic), applogger.Any("panic", r))
		}
	}()

	start := time.Now()
	var err error
	for attempt := 1; ; attempt++ {
		err = handler.Handle(ctx, in.msg.Value)
		if err == nil || attempt > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}
	if err != nil {
		consumerHandleErrors.WithLabelValues(in.topic).Inc()
		c.warn("handler failed, skipping message",
			applogger.String("topic", in.topic),
			applogger.Int("attempts", c.cfg.RetryMax+1),
			applogger.Error(err),
		)
	}
	consumerHandleLatency.WithLabelValues(in.topic).Observe(time.Since(start).Seconds())

	// Commit regardless of handler outcome; retries already ran their course.
	if reader := c.readers[in.topic]; reader != nil {
		commitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if cerr := reader.CommitMessages(commitCtx, in.msg); cerr != nil {
			c.warn("commit offset", applogger.String("topic", in.topic), applogger.Error(cerr))
		}
		cancel()
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min * time.Duration(1<<uint(attempt-1))
	if d > max {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2))
}

func (c *Consumer) info(msg string, fields ...applogger.Field) {
	if c.l != nil {
		c.l.Info(msg, fields...)
	}
}

func (c *Consumer) warn(msg string, fields ...applogger.Field) {
	if c.l != nil {
		c.l.Warn(msg, fields...)
	}
}

var (
	consumerMetricsOnce   sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleErrors  *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
)

func registerConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "anchorpull_kafka_consume_queue_depth",
			Help: "Messages waiting in the consumer queue",
		}, []string{"topic"})
		consumerHandleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorpull_kafka_consume_errors_total",
			Help: "Messages whose handler failed after all retries",
		}, []string{"topic"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "anchorpull_kafka_consume_handle_seconds",
			Help: "Handling time per message",
		}, []string{"topic"})
	})
}
