// Package producer provides types for producing messages to Kafka.
//
// A Model provides the routing key of a message and, optionally, a
// payload distinct from itself. Both are encoded with the codecs of the
// producer configuration, codec.Binary by default, and sent with the
// JVM compatible partitioner so that equal keys land on the same
// partition.
//
// Produce makes a single attempt. ProduceWithRetries retries failed
// sends with a linear backoff: the wait before attempt i+1 is
// RetryDelay*(i+1). Encoding failures are deterministic and never
// retried.
//
//	p, err := producer.New(producer.NewConfig("my-service"), "localhost:9092")
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	err = p.ProduceWithRetries(ctx, "orders", producer.Pair{"order-created", order}, 2)
package producer
