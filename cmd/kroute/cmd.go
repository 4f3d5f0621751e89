package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heetch/kroute/config"
	"github.com/heetch/kroute/handler"
	"github.com/heetch/kroute/producer"
	"github.com/heetch/kroute/service"
)

// nothing is the state of the command line services.
type nothing struct{}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:          "kroute",
		Short:        "Produce and consume keyed Kafka messages",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to an optional config file")

	root.AddCommand(newProduceCmd(&opts), newConsumeCmd(&opts))
	return root
}

// load reads the configuration and builds the logger it describes.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

type produceOptions struct {
	topic   string
	key     string
	value   string
	noValue bool
	retries int
}

func newProduceCmd(root *rootOptions) *cobra.Command {
	var opts produceOptions

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Send one message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.retries < -1 {
				return errors.Errorf("invalid --retries %d", opts.retries)
			}

			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			svc, err := service.ProducerOnly(*cfg, &nothing{}, service.WithLogger(logger))
			if err != nil {
				return err
			}
			defer svc.Close()

			return produce(cmd.Context(), svc, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.topic, "topic", "", "destination topic")
	flags.StringVar(&opts.key, "key", "", "message key")
	flags.StringVar(&opts.value, "value", "", "message payload")
	flags.BoolVar(&opts.noValue, "no-value", false, "send a message without payload")
	flags.IntVar(&opts.retries, "retries", -1, "retries on failure, -1 uses the configured count")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("key")
	cmd.MarkFlagsMutuallyExclusive("value", "no-value")

	return cmd
}

func produce(ctx context.Context, svc *service.Service[nothing], opts produceOptions) error {
	var payload interface{} = opts.value
	if opts.noValue {
		payload = nil
	}
	m := producer.Keyed(opts.key, payload)

	if opts.retries < 0 {
		return svc.ProduceWithRetry(ctx, opts.topic, m)
	}
	return svc.Producer().ProduceWithRetries(ctx, opts.topic, m, opts.retries)
}

type consumeOptions struct {
	group  string
	topics []string
}

func newConsumeCmd(root *rootOptions) *cobra.Command {
	var opts consumeOptions

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Log every received message until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if opts.group != "" {
				cfg.GroupID = opts.group
			}
			if len(opts.topics) > 0 {
				cfg.Topics = opts.topics
			}
			if !cfg.HasConsumer() {
				return errors.New("no consumer configured, set a group and topics")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := service.New(*cfg, logState(handler.Logging(logger)), &nothing{}, service.WithLogger(logger))
			if err != nil {
				return err
			}
			return consume(ctx, svc)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.group, "group", "", "consumer group, overrides the configured one")
	flags.StringSliceVar(&opts.topics, "topics", nil, "topics to subscribe to, override the configured ones")

	return cmd
}

// consume runs the consumer of svc until ctx is done or it fails.
func consume(ctx context.Context, svc *service.Service[nothing]) error {
	svc.Start(ctx)
	err := svc.Wait()
	if cerr := svc.Close(); err == nil {
		err = cerr
	}
	return err
}

func logState(h handler.Handler) handler.StateHandler[nothing] {
	return handler.StateHandlerFunc[nothing](func(ctx context.Context, key string, payload []byte, _ *nothing) error {
		return h.Process(ctx, key, payload)
	})
}
