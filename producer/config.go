package producer

import (
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/kroute/codec"
)

// Default values of the retry related fields of Config.
const (
	DefaultTimeout    = 2000 * time.Millisecond
	DefaultRetries    = 1
	DefaultRetryDelay = 100 * time.Millisecond
)

// Config is used to configure the Producer.
type Config struct {
	sarama.Config

	// Timeout bounds every send attempt. An attempt that takes longer
	// is treated as failed. Defaults to 2s.
	Timeout time.Duration

	// Retries is the number of retries used by callers that do not
	// choose one explicitly, such as the service package. Defaults to 1.
	Retries int

	// RetryDelay is the base delay of the linear backoff: attempt i+1
	// waits RetryDelay*(i+1) after attempt i failed. Defaults to 100ms.
	RetryDelay time.Duration

	// Codecs used to encode the key and the payload of models.
	// Both default to codec.Binary.
	KeyCodec     codec.Codec
	PayloadCodec codec.Codec

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// NewConfig creates a config with sane defaults.
func NewConfig(clientID string) Config {
	config := sarama.NewConfig()
	config.Version = sarama.V1_0_0_0
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll // Wait for all in-sync replicas to ack the message
	config.Producer.Retry.Max = 3                    // Retry up to 3 times to produce the message
	// required for the SyncProducer, see https://godoc.org/github.com/Shopify/sarama#SyncProducer
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	// Same key, same partition as the JVM clients.
	config.Producer.Partitioner = NewJVMCompatiblePartitioner

	return Config{
		Config:       *config,
		Timeout:      DefaultTimeout,
		Retries:      DefaultRetries,
		RetryDelay:   DefaultRetryDelay,
		KeyCodec:     codec.Binary(),
		PayloadCodec: codec.Binary(),
		Logger:       zap.NewNop(),
	}
}

// Validate checks the kroute specific fields and the embedded sarama
// configuration.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.Errorf("invalid produce timeout %s", c.Timeout)
	}
	if c.Retries < 0 {
		return errors.Errorf("invalid produce retries count %d", c.Retries)
	}
	if c.RetryDelay < 0 {
		return errors.Errorf("invalid retry delay %s", c.RetryDelay)
	}
	return errors.Wrap(c.Config.Validate(), "invalid sarama configuration")
}

// withDefaults fills the fields left empty by configs that were not
// created with NewConfig.
func (c Config) withDefaults() Config {
	if c.KeyCodec == nil {
		c.KeyCodec = codec.Binary()
	}
	if c.PayloadCodec == nil {
		c.PayloadCodec = codec.Binary()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
