package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/heetch/kroute/codec"
	"github.com/heetch/kroute/common"
	"github.com/heetch/kroute/config"
	"github.com/heetch/kroute/consumer"
	"github.com/heetch/kroute/handler"
	"github.com/heetch/kroute/producer"
	"github.com/heetch/kroute/service"
)

type appState struct {
	mu   sync.Mutex
	seen []string
}

func (s *appState) add(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, v)
}

func (s *appState) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

type event struct {
	msg *consumer.Message
	err error
}

// chanSource serves the events sent on its channel until its context
// is done.
type chanSource struct {
	events chan event

	mu      sync.Mutex
	commits []int64
	closed  bool
}

func newChanSource() *chanSource {
	return &chanSource{events: make(chan event)}
}

func (s *chanSource) Receive(ctx context.Context) (*consumer.Message, error) {
	select {
	case e := <-s.events:
		return e.msg, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *chanSource) Commit(m *consumer.Message, _ consumer.CommitMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, m.Offset)
	return nil
}

func (s *chanSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *chanSource) committed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.commits...)
}

func keyed(t *testing.T, offset int64, key, payload string) event {
	k, err := codec.Encode(key)
	require.NoError(t, err)
	return event{msg: &consumer.Message{Topic: "topic", Offset: offset, Key: k, Payload: []byte(payload)}}
}

func newService(t *testing.T, src consumer.Source, state *appState, retries int) (*service.Service[appState], *mocks.SyncProducer, *common.TestLogger) {
	tl := common.NewTestLogger(t)

	var c *consumer.Consumer
	if src != nil {
		h := handler.StateKeys[appState]{
			"record": handler.StateHandlerFunc[appState](func(_ context.Context, _ string, payload []byte, s *appState) error {
				s.add(string(payload))
				return nil
			}),
		}
		c = consumer.NewFromSource(src, handler.Bind[appState](h, state), consumer.Options{Logger: tl.Logger})
	}

	msp := mocks.NewSyncProducer(t, nil)
	cfg := producer.NewConfig("test")
	cfg.RetryDelay = time.Millisecond
	cfg.Logger = tl.Logger
	p := producer.NewFrom(msp, cfg)

	return service.NewFrom(c, p, state, retries, service.WithLogger(tl.Logger)), msp, tl
}

func TestProducerOnlyStart(t *testing.T) {
	state := &appState{}
	svc, _, tl := newService(t, nil, state, 0)

	svc.Start(context.Background())
	tl.RequireLogged("no consumer to start, producer-only mode")
	require.NoError(t, svc.Wait())
	require.Same(t, state, svc.State())
	require.NotNil(t, svc.Producer())
	require.NoError(t, svc.Close())
}

func TestStartRunsConsumerInBackground(t *testing.T) {
	src := newChanSource()
	state := &appState{}
	svc, _, tl := newService(t, src, state, 0)

	svc.Start(context.Background())
	svc.Start(context.Background())

	// the source is unbuffered: each send completes once the consumer
	// is receiving, so the previous message has been handled.
	src.events <- keyed(t, 0, "record", "a")
	src.events <- keyed(t, 1, "record", "b")
	src.events <- keyed(t, 2, "unknown", "c")

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Wait())
	require.Equal(t, []string{"a", "b"}, state.values())
	require.Equal(t, []int64{0, 1}, src.committed())
	require.True(t, src.closed)
	require.Equal(t, 1, tl.Count("consumer spawned"))
}

func TestWaitReturnsFatalError(t *testing.T) {
	src := newChanSource()
	svc, _, _ := newService(t, src, &appState{}, 0)

	svc.Start(context.Background())
	src.events <- event{err: sarama.ErrClosedConsumerGroup}

	err := svc.Wait()
	var te *consumer.TransportError
	require.True(t, errors.As(err, &te))
	require.True(t, te.Fatal)
	require.NoError(t, svc.Close())
}

func TestStartAfterCloseIsIgnored(t *testing.T) {
	src := newChanSource()
	svc, _, tl := newService(t, src, &appState{}, 0)

	require.NoError(t, svc.Close())
	svc.Start(context.Background())
	require.NoError(t, svc.Wait())
	require.Zero(t, tl.Count("consumer spawned"))
	require.NoError(t, svc.Close())
}

func TestProduceWithRetryUsesConfiguredRetries(t *testing.T) {
	svc, msp, tl := newService(t, nil, &appState{}, 2)

	for i := 0; i < 3; i++ {
		msp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	}
	err := svc.ProduceWithRetry(context.Background(), "topic", producer.Pair{"k", "v"})
	require.True(t, errors.Is(err, sarama.ErrNotLeaderForPartition))
	require.Equal(t, 2, tl.Count("produce attempt failed, retrying"))

	msp.ExpectSendMessageAndSucceed()
	require.NoError(t, svc.Produce(context.Background(), "topic", producer.Pair{"k", "v"}))
	require.NoError(t, svc.Close())
}

func TestProduceIsSingleAttempt(t *testing.T) {
	svc, msp, tl := newService(t, nil, &appState{}, 5)

	msp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	err := svc.Produce(context.Background(), "topic", producer.Pair{"k", "v"})
	require.True(t, errors.Is(err, sarama.ErrNotLeaderForPartition))
	require.Zero(t, tl.Count("produce attempt failed, retrying"))
	require.NoError(t, svc.Close())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Config{ClientID: "test", GroupID: "group", Topics: []string{"topic"}}
	_, err := service.New[appState](cfg, handler.StateKeys[appState]{}, &appState{})
	require.EqualError(t, err, "invalid service configuration: no kafka broker address")

	_, err = service.ProducerOnly[appState](cfg, &appState{})
	require.EqualError(t, err, "invalid service configuration: no kafka broker address")
}

func TestNewRejectsInvalidConsumerConfig(t *testing.T) {
	cfg := config.Config{
		Brokers:        []string{"localhost:9092"},
		ClientID:       "test",
		Topics:         []string{"topic"},
		OffsetReset:    consumer.OffsetEarliest,
		ProduceTimeout: time.Second,
	}
	_, err := service.New[appState](cfg, handler.StateKeys[appState]{}, &appState{})
	require.True(t, errors.Is(err, consumer.ErrConfiguration))
}

func TestNewRejectsNilHandler(t *testing.T) {
	cfg := config.Config{
		Brokers:        []string{"127.0.0.1:1"},
		ClientID:       "test",
		GroupID:        "group",
		Topics:         []string{"topic"},
		OffsetReset:    consumer.OffsetEarliest,
		ProduceTimeout: time.Second,
	}
	_, err := service.New[appState](cfg, nil, &appState{})
	require.True(t, errors.Is(err, consumer.ErrConfiguration))
	require.EqualError(t, err, "missing handler: invalid consumer configuration")
}
