// Command kroute produces and consumes keyed Kafka messages from the
// command line.
//
// Settings are read from the environment (KAFKA_URI, KAFKA_CLIENT_ID,
// KAFKA_GROUP_ID, KAFKA_TOPICS, ...) and from an optional file given
// with --config.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
