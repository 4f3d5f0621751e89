package producer

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/heetch/kroute/message"
)

var tracer = otel.Tracer("github.com/heetch/kroute/producer")

// Producer sends models to Kafka.
// It embeds the sarama.SyncProducer type and shadows the SendMessage
// method to use our message.Message type. It is safe for concurrent
// use.
type Producer struct {
	sarama.SyncProducer

	config Config
	logger *zap.Logger
}

// New creates a Producer.
// This Producer is synchronous, this means that it will wait for all the replicas to
// acknowledge the message.
func New(config Config, addrs ...string) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid producer configuration")
	}

	p, err := sarama.NewSyncProducer(addrs, &config.Config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a producer")
	}

	return NewFrom(p, config), nil
}

// NewFrom creates a producer using the given SyncProducer. Useful when
// wanting to create multiple producers with different configurations but sharing the same underlying connection.
func NewFrom(producer sarama.SyncProducer, config Config) *Producer {
	RegisterMetrics(prometheus.DefaultRegisterer)

	config = config.withDefaults()
	return &Producer{
		SyncProducer: producer,
		config:       config,
		logger:       config.Logger.Named("producer"),
	}
}

// Retries returns the configured number of retries.
func (p *Producer) Retries() int {
	return p.config.Retries
}

// Encode turns m into a message for the given topic, using the key
// and payload codecs of the producer. Failures are returned as
// *EncodeError.
func (p *Producer) Encode(topic string, m Model) (*message.Message, error) {
	key, err := p.config.KeyCodec.Encode(m.Key())
	if err != nil {
		encodeErrorsTotal.Inc()
		return nil, &EncodeError{Topic: topic, Part: "key", Err: err}
	}

	v, err := payloadOf(m)
	if err != nil {
		encodeErrorsTotal.Inc()
		return nil, &EncodeError{Topic: topic, Part: "payload", Err: err}
	}

	var payload []byte
	if v != nil {
		payload, err = p.config.PayloadCodec.Encode(v)
		if err != nil {
			encodeErrorsTotal.Inc()
			return nil, &EncodeError{Topic: topic, Part: "payload", Err: err}
		}
	}

	msg, err := message.New(topic, key, payload)
	if err != nil {
		return nil, &EncodeError{Topic: topic, Part: "message", Err: err}
	}
	return msg, nil
}

// Produce encodes m and sends it to topic in a single attempt.
func (p *Producer) Produce(ctx context.Context, topic string, m Model) error {
	msg, err := p.Encode(topic, m)
	if err != nil {
		return err
	}
	return p.send(ctx, msg, 1)
}

// ProduceWithRetries encodes m and sends it to topic, making up to
// maxRetries+1 attempts. After the failed attempt i (starting at 0) it
// waits RetryDelay*(i+1) before trying again. The error of the last
// attempt is returned as is, including when ctx is done during that
// attempt. Encoding errors are returned without any attempt. When ctx
// is done during a wait, the wait stops and ctx.Err() is returned.
func (p *Producer) ProduceWithRetries(ctx context.Context, topic string, m Model, maxRetries int) error {
	msg, err := p.Encode(topic, m)
	if err != nil {
		return err
	}

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		lastErr = p.send(ctx, msg, attempt)
		return lastErr
	}
	notify := func(err error, delay time.Duration) {
		retriesTotal.Inc()
		p.logger.Warn("produce attempt failed, retrying",
			zap.String("topic", topic),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err = backoff.RetryNotify(operation, newRetryBackOff(ctx, p.config.RetryDelay, maxRetries), notify)
	if err != nil && lastErr != nil && errors.Is(lastErr, err) {
		// the attempt itself was interrupted by ctx.
		err = lastErr
	}
	if err != nil {
		p.logger.Error("produce failed",
			zap.String("topic", topic),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// SendMessage sends the given message to Kafka synchronously, within
// the configured timeout. On success the partition and offset of msg
// are updated.
func (p *Producer) SendMessage(ctx context.Context, msg *message.Message) error {
	return p.send(ctx, msg, 1)
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

func (p *Producer) send(ctx context.Context, msg *message.Message, attempt int) error {
	ctx, span := tracer.Start(ctx, "kroute.produce",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.message.id", msg.ID),
			attribute.Int("kroute.attempt", attempt),
		),
	)
	defer span.End()

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan sendResult, 1)
	go func() {
		var r sendResult
		r.partition, r.offset, r.err = p.SyncProducer.SendMessage(msg.ToKafka())
		done <- r
	}()

	var err error
	select {
	case r := <-done:
		err = r.err
		if err == nil {
			msg.Partition, msg.Offset = r.partition, r.offset
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	sendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		attemptsTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &SendError{Topic: msg.Topic, Attempt: attempt, Err: err}
	}

	attemptsTotal.WithLabelValues("success").Inc()
	p.logger.Debug("message sent",
		zap.String("topic", msg.Topic),
		zap.String("id", msg.ID),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)
	return nil
}
