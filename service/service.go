// Package service composes an optional consumer, a producer and the
// application state shared by the handlers of the consumer.
//
// A service is typically created from a loaded configuration, started,
// and then used to produce messages while the consumer runs in the
// background:
//
//	svc, err := service.New(*cfg, handler.StateKeys[App]{
//		"order-created": handler.StateHandlerFunc[App](created),
//	}, app)
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	svc.Start(ctx)
//	err = svc.ProduceWithRetry(ctx, "orders", producer.Pair{"order-created", order})
package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/heetch/kroute/config"
	"github.com/heetch/kroute/consumer"
	"github.com/heetch/kroute/handler"
	"github.com/heetch/kroute/producer"
)

// Option customizes a Service.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger of the service and of the components it
// creates.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Service holds an optional consumer, a producer and the state S given
// to every call of the consumer handler.
type Service[S any] struct {
	consumer *consumer.Consumer
	producer *producer.Producer
	state    *S
	retries  int
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a service consuming the configured topics with h and
// producing to the configured brokers. When cfg has no consumer
// settings the service is producer-only and h is not used.
func New[S any](cfg config.Config, h handler.StateHandler[S], state *S, opts ...Option) (*Service[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid service configuration")
	}
	if !cfg.HasConsumer() {
		return ProducerOnly(cfg, state, opts...)
	}
	if h == nil {
		return nil, errors.Wrap(consumer.ErrConfiguration, "missing handler")
	}

	o := newOptions(opts)
	cc := cfg.Consumer(o.logger)
	if err := cc.Validate(); err != nil {
		return nil, err
	}

	p, err := producer.New(cfg.Producer(o.logger), cfg.Brokers...)
	if err != nil {
		return nil, err
	}

	c, err := consumer.New(cc, handler.Bind[S](h, state))
	if err != nil {
		return nil, multierr.Append(err, p.Close())
	}

	return NewFrom(c, p, state, cfg.ProduceRetries, opts...), nil
}

// ProducerOnly creates a service without consumer.
func ProducerOnly[S any](cfg config.Config, state *S, opts ...Option) (*Service[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid service configuration")
	}

	o := newOptions(opts)
	p, err := producer.New(cfg.Producer(o.logger), cfg.Brokers...)
	if err != nil {
		return nil, err
	}
	return NewFrom[S](nil, p, state, cfg.ProduceRetries, opts...), nil
}

// NewFrom creates a service from existing components. c may be nil for
// a producer-only service. retries is the number of retries used by
// ProduceWithRetry.
func NewFrom[S any](c *consumer.Consumer, p *producer.Producer, state *S, retries int, opts ...Option) *Service[S] {
	o := newOptions(opts)
	return &Service[S]{
		consumer: c,
		producer: p,
		state:    state,
		retries:  retries,
		logger:   o.logger.Named("service"),
		done:     make(chan struct{}),
	}
}

// Start runs the consumer in its own goroutine and returns at once.
// Without consumer, or when the consumer is already started, it does
// nothing. The consumer stops when ctx is done, when Close is called or
// when it meets a fatal error.
func (s *Service[S]) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumer == nil {
		s.logger.Info("no consumer to start, producer-only mode")
		return
	}
	if s.started || s.closed {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		_ = s.consumer.Run(ctx)
	}()
	s.logger.Info("consumer spawned")
}

// Wait blocks until the consumer stops and returns the error that
// stopped it. It returns nil at once if the consumer was not started.
func (s *Service[S]) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}
	<-s.done
	return s.consumer.Err()
}

// Produce sends m to topic in a single attempt.
func (s *Service[S]) Produce(ctx context.Context, topic string, m producer.Model) error {
	return s.producer.Produce(ctx, topic, m)
}

// ProduceWithRetry sends m to topic, retrying failed attempts as many
// times as configured.
func (s *Service[S]) ProduceWithRetry(ctx context.Context, topic string, m producer.Model) error {
	return s.producer.ProduceWithRetries(ctx, topic, m, s.retries)
}

// Producer returns the producer of the service.
func (s *Service[S]) Producer() *producer.Producer {
	return s.producer
}

// State returns the state shared with the consumer handler.
func (s *Service[S]) State() *S {
	return s.state
}

// Close stops the consumer, waits for it to return and closes the
// consumer and the producer.
func (s *Service[S]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	if started {
		cancel()
		<-s.done
	}

	var err error
	if s.consumer != nil {
		err = multierr.Append(err, s.consumer.Close())
	}
	return multierr.Append(err, s.producer.Close())
}
