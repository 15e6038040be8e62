package notification

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/complytics/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	DeadLetterKey    = "notify:deadletter"
	deadLetterMaxLen = 10000
	pushTimeout      = 5 * time.Second
)

type deadLetterRecord struct {
	MessageID string    `json:"message_id"`
	Template  string    `json:"template"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// DeadLetter consumes delivery failures. Each failure is logged, counted
// and, when a Redis client is present, appended to a capped list for
// later replay.
type DeadLetter struct {
	log     *zap.Logger
	client  *redis.Client
	metrics *metrics.AuthMetrics
	done    chan struct{}
}

func NewDeadLetter(log *zap.Logger, client *redis.Client, m *metrics.AuthMetrics) *DeadLetter {
	return &DeadLetter{
		log:     log.Named("notification.deadletter"),
		client:  client,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Run blocks until failures is closed.
func (c *DeadLetter) Run(failures <-chan Failure) {
	defer close(c.done)
	for f := range failures {
		c.handle(f)
	}
}

// Wait returns once Run has returned or ctx is done.
func (c *DeadLetter) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DeadLetter) handle(f Failure) {
	c.metrics.IncNotificationFailure(f.Template, f.Reason)

	fields := []zap.Field{
		zap.String("message_id", f.MessageID),
		zap.String("template", f.Template),
		zap.String("reason", f.Reason),
	}
	if f.Err != nil {
		fields = append(fields, zap.Error(f.Err))
	}
	c.log.Warn("notification not delivered", fields...)

	if c.client == nil {
		return
	}
	record := deadLetterRecord{
		MessageID: f.MessageID,
		Template:  f.Template,
		To:        f.To,
		Reason:    f.Reason,
		At:        f.At,
	}
	if f.Err != nil {
		record.Error = f.Err.Error()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		c.log.Error("encode dead letter", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, DeadLetterKey, payload)
		pipe.LTrim(ctx, DeadLetterKey, -deadLetterMaxLen, -1)
		return nil
	})
	if err != nil {
		c.log.Error("push dead letter", zap.String("message_id", f.MessageID), zap.Error(err))
	}
}
