// Package consumer receives messages from Kafka and hands each of them
// to a single handler.
//
// A Consumer is created from a Config and a handler.Handler:
//
//	cfg := consumer.NewConfig("my-client", "my-group", "localhost:9092")
//	cfg.Topics = []string{"orders"}
//
//	c, err := consumer.New(cfg, handler.Keys{
//		"order-created": handler.HandlerFunc(created),
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	err = c.Run(ctx)
//
// Run processes messages strictly one after the other. For every
// message it decodes the key into a routing key with the configured
// key codec, calls the handler with that key and the raw payload and,
// when the handler succeeds, commits the message according to the
// commit mode. A handler error leaves the message uncommitted and Run
// moves on to the next message.
//
// A message without key, or with a key that cannot be decoded, is
// never skipped: Run returns an error. Errors reported by the Kafka
// client are classified as fatal, which stops Run, or transient, which
// are logged. Cancelling the context given to Run stops it without
// error.
//
// The Source interface is the boundary with the Kafka client. New uses
// a sarama consumer group; NewFromSource accepts any other
// implementation.
package consumer
