package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// pause between two Consume calls that failed.
const consumeRetryPause = 100 * time.Millisecond

// groupSource is the Source backed by a sarama consumer group.
//
// sarama consumes every claimed partition in its own goroutine. Each
// of them hands its messages one by one to Receive and waits until the
// consumer loop is done with the current message before reading the
// next one, so the loop sees a single ordered stream.
type groupSource struct {
	group  sarama.ConsumerGroup
	topics []string
	logger *zap.Logger

	deliveries chan *Message
	errs       chan error

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newGroupSource(cfg Config) (*groupSource, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, cfg.saramaConfig())
	if err != nil {
		return nil, &kindError{kind: ErrClientCreation, err: err}
	}
	return startGroupSource(group, cfg.Topics, cfg.Logger), nil
}

func startGroupSource(group sarama.ConsumerGroup, topics []string, logger *zap.Logger) *groupSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := groupSource{
		group:      group,
		topics:     topics,
		logger:     logger.Named("consumer.group"),
		deliveries: make(chan *Message),
		errs:       make(chan error),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.wg.Add(2)
	go s.consume()
	go s.forwardErrors()
	return &s
}

// consume joins the group again after every rebalance until the
// source is closed or a fatal error occurs.
func (s *groupSource) consume() {
	defer s.wg.Done()
	for {
		err := s.group.Consume(s.ctx, s.topics, s)
		if s.ctx.Err() != nil {
			return
		}
		if err == nil {
			continue
		}

		s.report(errors.Wrap(err, "consume"))
		if isFatal(err) {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(consumeRetryPause):
		}
	}
}

// forwardErrors drains the group errors until the group is closed.
func (s *groupSource) forwardErrors() {
	defer s.wg.Done()
	for err := range s.group.Errors() {
		s.report(err)
	}
}

// report hands err to Receive, or drops it once the source is closed.
func (s *groupSource) report(err error) {
	select {
	case s.errs <- err:
	case <-s.ctx.Done():
		s.logger.Debug("dropping error of closed source", zap.Error(err))
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (s *groupSource) Setup(sess sarama.ConsumerGroupSession) error {
	s.logger.Info("joined consumer group",
		zap.String("member_id", sess.MemberID()),
		zap.Int32("generation_id", sess.GenerationID()),
	)
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (s *groupSource) Cleanup(sess sarama.ConsumerGroupSession) error {
	s.logger.Info("leaving consumer group session",
		zap.Int32("generation_id", sess.GenerationID()),
	)
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (s *groupSource) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		var sm *sarama.ConsumerMessage
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			sm = msg
		case <-sess.Context().Done():
			return nil
		}

		done := make(chan struct{})
		m := fromKafka(sm, claim.HighWaterMarkOffset())
		m.session = sess
		m.release = once(func() { close(done) })

		select {
		case s.deliveries <- m:
		case <-sess.Context().Done():
			return nil
		}

		// The session stays open until the message is released, so
		// that it can still be committed.
		select {
		case <-done:
		case <-s.ctx.Done():
			return nil
		}
	}
}

// Receive implements Source.
func (s *groupSource) Receive(ctx context.Context) (*Message, error) {
	select {
	case m := <-s.deliveries:
		return m, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, sarama.ErrClosedConsumerGroup
	}
}

// Commit implements Source. Asynchronous commits only mark the
// message, the offsets being flushed by the client auto-commit.
func (s *groupSource) Commit(m *Message, mode CommitMode) error {
	if m.session == nil || m.raw == nil {
		return errors.Errorf("message %s/%d/%d was not received from a consumer group", m.Topic, m.Partition, m.Offset)
	}
	m.session.MarkMessage(m.raw, "")
	if mode == CommitSync {
		m.session.Commit()
	}
	return nil
}

// Close implements Source. It is safe to call more than once.
func (s *groupSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.group.Close()
		s.wg.Wait()
	})
	return s.closeErr
}
