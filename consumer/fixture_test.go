package consumer_test

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/Shopify/sarama"
	qt "github.com/frankban/quicktest"
	"github.com/heetch/kafkatest"

	"github.com/heetch/kroute/codec"
	"github.com/heetch/kroute/consumer"
	"github.com/heetch/kroute/handler"
)

type testKafka struct {
	client   sarama.Client
	producer sarama.SyncProducer
	kt       *kafkatest.Kafka
}

// newTestKafka connects to the Kafka cluster listed in $KAFKA_ADDRS,
// skipping the test when it is not set.
func newTestKafka(c *qt.C) *testKafka {
	if os.Getenv("KAFKA_ADDRS") == "" {
		c.Skip("skipping integration tests: $KAFKA_ADDRS is not set")
	}
	kt, err := kafkatest.New()
	if errors.Is(err, kafkatest.ErrDisabled) {
		c.Skipf("skipping integration tests")
	}
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		c.Check(kt.Close(), qt.IsNil)
	})

	cfg := kt.Config()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.ClientID = randomName("clientid-")
	client, err := sarama.NewClient(kt.Addrs(), cfg)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { c.Check(client.Close(), qt.IsNil) })

	producer, err := sarama.NewSyncProducerFromClient(client)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { c.Check(producer.Close(), qt.IsNil) })
	return &testKafka{
		kt:       kt,
		client:   client,
		producer: producer,
	}
}

// NewConsumer returns a consumer of topic that uses a real Kafka
// instance and its own consumer group.
func (k *testKafka) NewConsumer(c *qt.C, group, topic string, mode consumer.CommitMode, h handler.Handler) *consumer.Consumer {
	// Note: if we use the same consumer group name
	// for all consumers, we see sporadic timeout issues,
	// even though that technically shouldn't happen
	// with unrelated topics.
	cfg := consumer.NewConfig(randomName("testclient"), group, k.kt.Addrs()...)
	cfg.Config = k.kt.Config()
	cfg.ClientID = randomName("testclient")
	cfg.Consumer.Return.Errors = true
	cfg.Topics = []string{topic}
	cfg.CommitMode = mode

	cs, err := consumer.New(cfg, h)
	c.Assert(err, qt.IsNil)
	return cs
}

func (k *testKafka) NewTopic() string {
	return k.kt.NewTopic()
}

// Produce sends a message with a binary encoded key.
func (k *testKafka) Produce(c *qt.C, topic, key string, payload []byte) {
	m := &sarama.ProducerMessage{Topic: topic}
	if key != "" {
		m.Key = codec.BinaryEncoder(key)
	}
	if payload != nil {
		m.Value = codec.NewEncoder(codec.String(), payload)
	}
	_, _, err := k.producer.SendMessage(m)
	c.Assert(err, qt.IsNil)
}

func randomName(prefix string) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s-%x", prefix, buf)
}
