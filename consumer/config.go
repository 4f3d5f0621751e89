package consumer

import (
	"strconv"
	"strings"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/heetch/kroute/codec"
)

// Offset reset policies, used when the group has no committed offset.
const (
	OffsetEarliest = "earliest"
	OffsetLatest   = "latest"
)

// CommitMode defines how a handled message is committed.
type CommitMode int

const (
	// CommitAsync marks the message and lets the client flush the
	// offsets periodically. Commit errors are only logged.
	CommitAsync CommitMode = iota

	// CommitSync marks the message and commits it before the next
	// message is received.
	CommitSync
)

func (m CommitMode) String() string {
	switch m {
	case CommitAsync:
		return "async"
	case CommitSync:
		return "sync"
	}
	return "CommitMode(" + strconv.Itoa(int(m)) + ")"
}

// ParseCommitMode parses "async" or "sync", case insensitively.
func ParseCommitMode(s string) (CommitMode, error) {
	switch strings.ToLower(s) {
	case "async":
		return CommitAsync, nil
	case "sync":
		return CommitSync, nil
	}
	return 0, configErrorf("unknown commit mode %q", s)
}

// Config is used to configure the Consumer.
type Config struct {
	*sarama.Config

	// Brokers holds kafka brokers addresses. There must be at least
	// one entry in the slice.
	// Default to localhost:9092.
	Brokers []string

	// GroupID is the consumer group the consumer joins.
	GroupID string

	// Topics the consumer subscribes to.
	Topics []string

	// OffsetReset is either OffsetEarliest or OffsetLatest.
	// Default to OffsetEarliest.
	OffsetReset string

	// CommitMode used for successfully handled messages.
	// Default to CommitAsync.
	CommitMode CommitMode

	// Codec used to decode the message key into the routing key.
	// Defaults to codec.Binary.
	KeyCodec codec.Codec

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// NewConfig creates a config with sane defaults.
func NewConfig(clientID, groupID string, addrs ...string) Config {
	var c Config

	c.Config = sarama.NewConfig()
	c.ClientID = clientID
	c.Consumer.Return.Errors = true
	// Specify that we are using at least Kafka v1.0
	c.Version = sarama.V1_0_0_0
	// Distribute load across instances using round robin strategy
	c.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	c.Brokers = addrs
	if c.Brokers == nil {
		c.Brokers = []string{"localhost:9092"}
	}
	c.GroupID = groupID
	c.OffsetReset = OffsetEarliest
	c.CommitMode = CommitAsync
	c.KeyCodec = codec.Binary()
	c.Logger = zap.NewNop()

	return c
}

// Validate returns an error matching ErrConfiguration or
// ErrSubscription when c cannot be used to create a Consumer.
func (c *Config) Validate() error {
	if c.Config == nil {
		return configErrorf("missing sarama configuration")
	}
	if len(c.Brokers) == 0 {
		return configErrorf("no broker address")
	}
	for _, addr := range c.Brokers {
		if addr == "" {
			return configErrorf("empty broker address")
		}
	}
	if c.GroupID == "" {
		return configErrorf("empty group id")
	}
	if c.OffsetReset != OffsetEarliest && c.OffsetReset != OffsetLatest {
		return configErrorf("unknown offset reset policy %q", c.OffsetReset)
	}
	if c.CommitMode != CommitAsync && c.CommitMode != CommitSync {
		return configErrorf("unknown commit mode %v", c.CommitMode)
	}

	if len(c.Topics) == 0 {
		return subscriptionErrorf("no topic")
	}
	for _, topic := range c.Topics {
		if topic == "" {
			return subscriptionErrorf("empty topic name")
		}
	}

	if err := c.saramaConfig().Validate(); err != nil {
		return &kindError{kind: ErrConfiguration, err: err}
	}
	return nil
}

// saramaConfig returns a copy of the embedded sarama configuration
// updated with the offset reset policy and the commit mode.
func (c *Config) saramaConfig() *sarama.Config {
	sc := *c.Config
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	if c.OffsetReset == OffsetLatest {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	sc.Consumer.Offsets.AutoCommit.Enable = c.CommitMode == CommitAsync
	return &sc
}

// options returns the settings of c used by the consumer loop.
func (c *Config) options() Options {
	return Options{
		CommitMode: c.CommitMode,
		KeyCodec:   c.KeyCodec,
		Logger:     c.Logger,
	}
}
