package consumer

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/heetch/kroute/codec"
	"github.com/heetch/kroute/handler"
)

var tracer = otel.Tracer("github.com/heetch/kroute/consumer")

// Options holds the settings of the consumer loop.
type Options struct {
	// CommitMode used for successfully handled messages.
	CommitMode CommitMode

	// KeyCodec decodes message keys. Defaults to codec.Binary.
	KeyCodec codec.Codec

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Consumer receives messages from a Source and calls its handler for
// each of them, one at a time.
type Consumer struct {
	src      Source
	handler  handler.Handler
	mode     CommitMode
	keyCodec codec.Codec
	logger   *zap.Logger

	mu      sync.Mutex
	stopped bool
	err     error
}

// New creates a Consumer joining the consumer group described by cfg.
// The returned errors match ErrConfiguration, ErrSubscription or
// ErrClientCreation.
func New(cfg Config, h handler.Handler) (*Consumer, error) {
	if h == nil {
		return nil, configErrorf("missing handler")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, err := newGroupSource(cfg)
	if err != nil {
		return nil, err
	}
	return NewFromSource(src, h, cfg.options()), nil
}

// NewFromSource creates a Consumer reading from src.
func NewFromSource(src Source, h handler.Handler, opts Options) *Consumer {
	RegisterMetrics(prometheus.DefaultRegisterer)

	if opts.KeyCodec == nil {
		opts.KeyCodec = codec.Binary()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Consumer{
		src:      src,
		handler:  h,
		mode:     opts.CommitMode,
		keyCodec: opts.KeyCodec,
		logger:   opts.Logger.Named("consumer"),
	}
}

// Run consumes messages until ctx is done, which returns nil, or until
// an error stops the consumer:
//   - a missing handler, matching ErrConfiguration;
//   - a fatal transport error, as a *TransportError;
//   - a message without key, matching ErrKeyMissing;
//   - a key that cannot be decoded, as a *KeyDecodeError.
//
// Handler errors never stop the consumer: the message is logged and
// left uncommitted. Run must not be called concurrently.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	err := c.run(ctx)

	c.mu.Lock()
	c.stopped = true
	c.err = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("consumer stopped", zap.Error(err))
	} else {
		c.logger.Info("consumer stopped")
	}
	return err
}

func (c *Consumer) run(ctx context.Context) error {
	if c.handler == nil {
		return configErrorf("missing handler")
	}
	for {
		m, err := c.src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			te := classify(err)
			transportErrorsTotal.WithLabelValues(strconv.FormatBool(te.Fatal)).Inc()
			if te.Fatal {
				return te
			}
			c.logger.Warn("transport error", zap.Error(err))
			continue
		}

		if err := c.handle(ctx, m); err != nil {
			return err
		}
	}
}

// handle processes a single message. Only errors that must stop the
// consumer are returned.
func (c *Consumer) handle(ctx context.Context, m *Message) error {
	defer m.finish()

	ctx, span := tracer.Start(ctx, "kroute.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.source.name", m.Topic),
			attribute.Int("messaging.kafka.partition", int(m.Partition)),
			attribute.Int64("messaging.kafka.offset", m.Offset),
		),
	)
	defer span.End()

	logger := c.logger.With(
		zap.String("topic", m.Topic),
		zap.Int32("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)

	if m.Key == nil {
		messagesTotal.WithLabelValues(outcomeKeyMissing).Inc()
		span.SetStatus(codes.Error, ErrKeyMissing.Error())
		return errors.Wrapf(ErrKeyMissing, "topic %s partition %d offset %d", m.Topic, m.Partition, m.Offset)
	}

	var key string
	if err := c.keyCodec.Decode(m.Key, &key); err != nil {
		messagesTotal.WithLabelValues(outcomeKeyInvalid).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid key")
		return &KeyDecodeError{Key: m.Key, Err: err}
	}
	span.SetAttributes(attribute.String("kroute.key", key))

	if err := c.handler.Process(ctx, key, m.Payload); err != nil {
		messagesTotal.WithLabelValues(outcomeFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("cannot handle message, not committing",
			zap.String("key", key),
			zap.String("kind", errorKind(err)),
			zap.Error(err),
		)
		return nil
	}

	if err := c.src.Commit(m, c.mode); err != nil {
		logger.Error("cannot commit message",
			zap.String("key", key),
			zap.Stringer("mode", c.mode),
			zap.Error(err),
		)
	}
	messagesTotal.WithLabelValues(outcomeCommitted).Inc()
	return nil
}

// errorKind names the class of a handler error for the logs.
func errorKind(err error) string {
	switch {
	case errors.Is(err, handler.ErrPayloadMissing):
		return "payload_missing"
	case errors.Is(err, handler.ErrKeyNotRegistered):
		return "key_not_registered"
	case errors.Is(err, handler.ErrDeserialize):
		return "deserialize"
	}
	return "handler"
}

// Err returns the error that stopped the last Run, nil if it stopped
// because its context was done or if it is still running.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stopped reports whether Run returned.
func (c *Consumer) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Close releases the underlying Source. A Run still in progress
// returns a fatal transport error.
func (c *Consumer) Close() error {
	return c.src.Close()
}
