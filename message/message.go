package message

import (
	"sort"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/rogpeppe/fastuuid"
)

// Header names set on every message created by New.
const (
	HeaderID         = "Message-Id"
	HeaderProducedAt = "Produced-At"
)

var uuids = fastuuid.MustNewGenerator()

// Message contains informations about the message to be sent to Kafka.
type Message struct {
	// Kafka topic.
	Topic string

	// Encoded routing key. Messages with the same key are sent to the
	// same Kafka partition.
	Key []byte

	// Encoded payload. A nil Payload produces a message without value.
	Payload []byte

	ProducedAt time.Time

	// Partition where this publication was stored.
	Partition int32

	// Offset where this publication was stored.
	Offset int64

	// Headers of the message.
	Headers map[string]string

	// Unique id of the message.
	ID string
}

// New creates a new configured message.
func New(topic string, key, payload []byte, opts ...Option) (*Message, error) {
	if topic == "" {
		return nil, errors.New("messages require a non-empty topic")
	}

	now := time.Now().UTC()
	id := uuids.Hex128()
	m := Message{
		ID:         id,
		Topic:      topic,
		Key:        key,
		Payload:    payload,
		ProducedAt: now,
		Headers: map[string]string{
			HeaderID:         id,
			HeaderProducedAt: now.Format(time.RFC3339Nano),
		},
	}

	for _, o := range opts {
		o(&m)
	}

	return &m, nil
}

// ToKafka converts m to the sarama message given to the producer.
// Headers are sorted by name.
func (m *Message) ToKafka() *sarama.ProducerMessage {
	pm := sarama.ProducerMessage{
		Topic:     m.Topic,
		Timestamp: m.ProducedAt,
	}
	if m.Key != nil {
		pm.Key = sarama.ByteEncoder(m.Key)
	}
	if m.Payload != nil {
		pm.Value = sarama.ByteEncoder(m.Payload)
	}

	if len(m.Headers) > 0 {
		names := make([]string, 0, len(m.Headers))
		for k := range m.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		pm.Headers = make([]sarama.RecordHeader, len(names))
		for i, k := range names {
			pm.Headers[i] = sarama.RecordHeader{Key: []byte(k), Value: []byte(m.Headers[k])}
		}
	}

	return &pm
}
