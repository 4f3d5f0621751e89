package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
)

// Message is a message received from Kafka.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64

	// Key holds the raw key bytes, nil when the message has no key.
	Key []byte

	// Payload holds the raw value bytes, nil when the message has no value.
	Payload []byte

	Headers   map[string]string
	Timestamp time.Time

	// HighWaterMarkOffset is the offset of the next message to be
	// produced on the partition, when known.
	HighWaterMarkOffset int64

	// set by groupSource.
	session sarama.ConsumerGroupSession
	raw     *sarama.ConsumerMessage
	release func()
}

// finish tells the source the consumer is done with m, whether it was
// committed or not.
func (m *Message) finish() {
	if m.release != nil {
		m.release()
	}
}

// Source is the boundary between the consumer loop and the Kafka
// client. Receive blocks until a message or an error is available, or
// ctx is done. Commit acknowledges a message with the given mode.
type Source interface {
	Receive(ctx context.Context) (*Message, error)
	Commit(m *Message, mode CommitMode) error
	Close() error
}

func fromKafka(sm *sarama.ConsumerMessage, hwm int64) *Message {
	m := Message{
		Topic:               sm.Topic,
		Partition:           sm.Partition,
		Offset:              sm.Offset,
		Key:                 sm.Key,
		Payload:             sm.Value,
		Timestamp:           sm.Timestamp,
		HighWaterMarkOffset: hwm,
		raw:                 sm,
	}
	if len(sm.Headers) > 0 {
		m.Headers = make(map[string]string, len(sm.Headers))
		for _, h := range sm.Headers {
			if h != nil {
				m.Headers[string(h.Key)] = string(h.Value)
			}
		}
	}
	return &m
}

// once returns a function calling f at most once.
func once(f func()) func() {
	var o sync.Once
	return func() { o.Do(f) }
}
