// Package config loads the settings of a kroute service from the
// environment and an optional configuration file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/heetch/kroute/common"
	"github.com/heetch/kroute/consumer"
	"github.com/heetch/kroute/producer"
)

// Keys of the settings. Each of them can be set in the configuration
// file or with the environment variable of the same name in upper
// case.
const (
	KeyURI            = "kafka_uri"
	KeyClientID       = "kafka_client_id"
	KeyGroupID        = "kafka_group_id"
	KeyTopics         = "kafka_topics"
	KeyOffsetReset    = "kafka_offset_reset"
	KeyCommitMode     = "kafka_commit_mode"
	KeyProduceTimeout = "kafka_produce_timeout_ms"
	KeyProduceRetries = "kafka_produce_retries_count"
	KeyLogLevel       = "log_level"
	KeyLogDev         = "log_dev"
)

// Config holds the settings of a service.
type Config struct {
	Brokers        []string
	ClientID       string
	GroupID        string
	Topics         []string
	OffsetReset    string
	CommitMode     consumer.CommitMode
	ProduceTimeout time.Duration
	ProduceRetries int
	LogLevel       string
	LogDev         bool
}

// Load reads the configuration. Defaults are overridden by the file at
// path, if not empty, which is in turn overridden by the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault(KeyURI, "localhost:9092")
	v.SetDefault(KeyClientID, "kroute")
	v.SetDefault(KeyOffsetReset, consumer.OffsetEarliest)
	v.SetDefault(KeyCommitMode, consumer.CommitAsync.String())
	v.SetDefault(KeyProduceTimeout, producer.DefaultTimeout.Milliseconds())
	v.SetDefault(KeyProduceRetries, producer.DefaultRetries)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogDev, false)

	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "cannot read config %q", path)
		}
	}

	mode, err := consumer.ParseCommitMode(v.GetString(KeyCommitMode))
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Brokers:        splitList(v.GetStringSlice(KeyURI)),
		ClientID:       v.GetString(KeyClientID),
		GroupID:        v.GetString(KeyGroupID),
		Topics:         splitList(v.GetStringSlice(KeyTopics)),
		OffsetReset:    strings.ToLower(v.GetString(KeyOffsetReset)),
		CommitMode:     mode,
		ProduceTimeout: time.Duration(v.GetInt64(KeyProduceTimeout)) * time.Millisecond,
		ProduceRetries: v.GetInt(KeyProduceRetries),
		LogLevel:       v.GetString(KeyLogLevel),
		LogDev:         v.GetBool(KeyLogDev),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings shared by consumers and producers.
// Consumer settings are checked when the consumer is created.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("no kafka broker address")
	}
	if c.ClientID == "" {
		return errors.New("empty client id")
	}
	if c.OffsetReset != consumer.OffsetEarliest && c.OffsetReset != consumer.OffsetLatest {
		return errors.Errorf("unknown offset reset policy %q", c.OffsetReset)
	}
	if c.ProduceTimeout <= 0 {
		return errors.Errorf("produce timeout must be positive, got %s", c.ProduceTimeout)
	}
	if c.ProduceRetries < 0 {
		return errors.Errorf("produce retries count must not be negative, got %d", c.ProduceRetries)
	}
	return nil
}

// HasConsumer reports whether a consumer group and topics are
// configured.
func (c *Config) HasConsumer() bool {
	return c.GroupID != "" || len(c.Topics) > 0
}

// Consumer returns the consumer configuration.
func (c *Config) Consumer(logger *zap.Logger) consumer.Config {
	cc := consumer.NewConfig(c.ClientID, c.GroupID, c.Brokers...)
	cc.Topics = c.Topics
	cc.OffsetReset = c.OffsetReset
	cc.CommitMode = c.CommitMode
	cc.Logger = common.LoggerOrNop(logger)
	return cc
}

// Producer returns the producer configuration.
func (c *Config) Producer(logger *zap.Logger) producer.Config {
	pc := producer.NewConfig(c.ClientID)
	pc.Timeout = c.ProduceTimeout
	pc.Retries = c.ProduceRetries
	pc.Logger = common.LoggerOrNop(logger)
	return pc
}

// Logger builds the logger described by the log settings.
func (c *Config) Logger() (*zap.Logger, error) {
	return common.NewLogger(c.LogLevel, c.LogDev)
}

// splitList splits comma separated values and drops the empty ones.
func splitList(values []string) []string {
	var list []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
	}
	return list
}
