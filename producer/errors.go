package producer

import (
	"fmt"
)

// EncodeError is returned when the key or the payload of a model
// cannot be encoded. It is never retried.
type EncodeError struct {
	Topic string
	// Part is either "key" or "payload".
	Part string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot encode %s of message for topic %q: %v", e.Part, e.Topic, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// SendError is returned when a message could not be sent to Kafka.
type SendError struct {
	Topic string
	// Attempt is the 1-based number of the failed attempt.
	Attempt int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message to topic %q (attempt %d): %v", e.Topic, e.Attempt, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
