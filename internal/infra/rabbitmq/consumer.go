package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/framescope/framescope/internal/infra/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumerConfig struct {
	URL         string
	Queue       string
	Exchange    string
	DLQ         string
	StatusQueue string
	Prefetch    int
	WorkerCount int
}

func (c ConsumerConfig) topology() Topology {
	return Topology{Exchange: c.Exchange, Queue: c.Queue, StatusQueue: c.StatusQueue, DLQ: c.DLQ}
}

// Consumer feeds deliveries from one queue to a fixed number of workers.
// Deliveries are settled exactly once and never requeued: a handler error or
// panic rejects the message, anything else acks it.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     ConsumerConfig
	handler MessageHandler
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.Prefetch < cfg.WorkerCount {
		cfg.Prefetch = cfg.WorkerCount
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Consumer{conn: conn, channel: ch, cfg: cfg, handler: handler, logger: logger}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) setup() error {
	if err := c.cfg.topology().Declare(c.channel); err != nil {
		return err
	}
	if err := c.channel.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// Start blocks until ctx is cancelled or the broker closes the delivery
// channel, then waits for in-flight messages to settle.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}

	c.logger.Info("consuming",
		zap.String("queue", c.cfg.Queue),
		zap.Int("workers", c.cfg.WorkerCount),
		zap.Int("prefetch", c.cfg.Prefetch),
	)

	for id := 0; id < c.cfg.WorkerCount; id++ {
		c.wg.Add(1)
		go func(log *zap.Logger) {
			defer c.wg.Done()
			c.drain(ctx, deliveries, log)
		}(c.logger.With(zap.Int("worker_id", id)))
	}

	c.wg.Wait()
	c.logger.Info("all workers stopped", zap.String("queue", c.cfg.Queue))
	return nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Warn("delivery channel closed")
				return
			}
			c.settle(d, c.handle(ctx, d, log), log)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, log *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, d.Body)
}

func (c *Consumer) settle(d amqp.Delivery, handleErr error, log *zap.Logger) {
	if handleErr == nil {
		metrics.DeliveriesTotal.WithLabelValues("acked").Inc()
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
		}
		return
	}

	metrics.DeliveriesTotal.WithLabelValues("rejected").Inc()
	log.Warn("rejecting delivery without requeue",
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Error(handleErr),
	)
	if err := d.Nack(false, false); err != nil {
		log.Error("nack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
