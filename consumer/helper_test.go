package consumer

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
)

// consumerGroupClaim implements sarama.ConsumerGroupClaim interface.
type consumerGroupClaim struct {
	ch    chan *sarama.ConsumerMessage
	topic string
	hwm   int64
}

func (c consumerGroupClaim) Topic() string {
	return c.topic
}

func (consumerGroupClaim) Partition() int32 {
	return int32(0)
}

func (consumerGroupClaim) InitialOffset() int64 {
	return int64(0)
}

func (c consumerGroupClaim) HighWaterMarkOffset() int64 {
	return c.hwm
}

func (c consumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.ch
}

// newClaim returns a claim holding msgs, closed once they are read.
func newClaim(topic string, msgs ...*sarama.ConsumerMessage) consumerGroupClaim {
	c := consumerGroupClaim{ch: make(chan *sarama.ConsumerMessage, len(msgs)), topic: topic, hwm: int64(len(msgs))}
	for _, m := range msgs {
		c.ch <- m
	}
	close(c.ch)
	return c
}

// consumerGroupSession implements sarama.ConsumerGroupSession interface
// and records marked offsets and commits.
type consumerGroupSession struct {
	mu      sync.Mutex
	ctx     context.Context
	marked  []int64
	commits int
}

func (*consumerGroupSession) Claims() map[string][]int32 {
	return nil
}

func (*consumerGroupSession) MemberID() string {
	return ""
}

func (*consumerGroupSession) GenerationID() int32 {
	return int32(0)
}

func (*consumerGroupSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}

func (s *consumerGroupSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}

func (*consumerGroupSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}

func (s *consumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *consumerGroupSession) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *consumerGroupSession) setContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

func (s *consumerGroupSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

func (s *consumerGroupSession) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// consumerGroup implements sarama.ConsumerGroup. The first Consume call
// serves the claim, if any, and the following ones block until their
// context is done.
type consumerGroup struct {
	sarama.ConsumerGroup

	session    *consumerGroupSession
	claim      *consumerGroupClaim
	consumeErr error
	errs       chan error
	claimed    chan struct{}

	mu        sync.Mutex
	calls     int
	closeOnce sync.Once
}

func newConsumerGroup(claim *consumerGroupClaim) *consumerGroup {
	return &consumerGroup{
		session: new(consumerGroupSession),
		claim:   claim,
		errs:    make(chan error, 10),
		claimed: make(chan struct{}),
	}
}

func (g *consumerGroup) Consume(ctx context.Context, topics []string, h sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	first := g.calls == 0
	g.calls++
	g.mu.Unlock()

	if first && g.consumeErr != nil {
		return g.consumeErr
	}
	if !first || g.claim == nil {
		<-ctx.Done()
		return nil
	}

	g.session.setContext(ctx)
	if err := h.Setup(g.session); err != nil {
		return err
	}
	err := h.ConsumeClaim(g.session, g.claim)
	if cerr := h.Cleanup(g.session); err == nil {
		err = cerr
	}
	close(g.claimed)
	return err
}

func (g *consumerGroup) Errors() <-chan error {
	return g.errs
}

func (g *consumerGroup) Close() error {
	g.closeOnce.Do(func() { close(g.errs) })
	return nil
}
