// Package consumer drains the command queue and runs validate and submit
// commands against the summary log store.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/queue"
)

const (
	defaultConcurrency     = 4
	defaultBatchSize       = 10
	defaultMaxReceiveCount = 3
	defaultPollInterval    = time.Second
)

// Config tunes the consumer loop.
type Config struct {
	Concurrency     int           `mapstructure:"concurrency"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxReceiveCount int           `mapstructure:"max_receive_count"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxReceiveCount <= 0 {
		c.MaxReceiveCount = defaultMaxReceiveCount
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

// CommandHandler is implemented by Handler.
type CommandHandler interface {
	Handle(ctx context.Context, cmd domain.Command) error
	MarkFailed(ctx context.Context, cmd domain.Command, cause error) error
}

// Consumer receives batches from the queue and processes each message on
// a bounded pool.
type Consumer struct {
	queue   queue.Queue
	handler CommandHandler
	cfg     Config
	logger  *zap.Logger
}

func New(q queue.Queue, handler CommandHandler, cfg Config, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		queue:   q,
		handler: handler,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("consumer"),
	}
}

// Run polls until ctx is cancelled. Messages already being processed are
// allowed to finish.
func (c *Consumer) Run(ctx context.Context) error {
	idle := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	c.logger.Info("command consumer started",
		zap.Int("concurrency", c.cfg.Concurrency),
		zap.Int("maxReceiveCount", c.cfg.MaxReceiveCount),
	)
	for {
		if ctx.Err() != nil {
			c.logger.Info("command consumer stopped")
			return nil
		}
		processed, err := c.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			c.logger.Error("failed to receive commands", zap.Error(err))
		}
		if processed == 0 {
			if err := idle.Wait(ctx); err != nil {
				c.logger.Info("command consumer stopped")
				return nil
			}
		}
	}
}

// Poll receives one batch and processes it. It returns the number of
// messages received.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	messages, err := c.queue.Receive(ctx, c.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	work := context.WithoutCancel(ctx)
	var group errgroup.Group
	group.SetLimit(c.cfg.Concurrency)
	for _, message := range messages {
		group.Go(func() error {
			c.process(work, message)
			return nil
		})
	}
	_ = group.Wait()
	return len(messages), nil
}

func (c *Consumer) process(ctx context.Context, message queue.Message) {
	logger := c.logger.With(zap.String("messageId", message.ID), zap.Int("receiveCount", message.ReceiveCount))

	var cmd domain.Command
	if err := json.Unmarshal(message.Body, &cmd); err != nil || strings.TrimSpace(cmd.SummaryLogID) == "" {
		logger.Error("dropping malformed command", zap.ByteString("body", message.Body), zap.Error(err))
		c.delete(ctx, message, logger)
		return
	}
	logger = logger.With(zap.String("command", string(cmd.Type)), zap.String("summaryLogId", cmd.SummaryLogID))

	err := c.run(ctx, cmd)
	switch {
	case err == nil:
		c.delete(ctx, message, logger)
	case IsPermanent(err):
		logger.Warn("dropping command", zap.Error(err))
		c.delete(ctx, message, logger)
	case message.ReceiveCount >= c.cfg.MaxReceiveCount:
		logger.Error("command exhausted retries", zap.Error(err))
		if markErr := c.handler.MarkFailed(ctx, cmd, err); markErr != nil {
			logger.Error("failed to mark summary log failed", zap.Error(markErr))
			return
		}
		c.delete(ctx, message, logger)
	default:
		logger.Warn("command failed, leaving for redelivery", zap.Error(err))
	}
}

func (c *Consumer) run(ctx context.Context, cmd domain.Command) (err error) {
	if c.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CommandTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return c.handler.Handle(ctx, cmd)
}

func (c *Consumer) delete(ctx context.Context, message queue.Message, logger *zap.Logger) {
	if err := c.queue.Delete(ctx, message.ReceiptHandle); err != nil {
		if errors.Is(err, queue.ErrMessageNotFound) {
			logger.Warn("message receipt expired before delete")
			return
		}
		logger.Error("failed to delete message", zap.Error(err))
	}
}
