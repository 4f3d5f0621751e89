package consumer

import (
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is matched by errors returned for an invalid
	// consumer configuration.
	ErrConfiguration = errors.New("invalid consumer configuration")

	// ErrClientCreation is matched by errors returned when the Kafka
	// client cannot be created.
	ErrClientCreation = errors.New("cannot create consumer group")

	// ErrSubscription is matched by errors returned for an invalid
	// topic subscription.
	ErrSubscription = errors.New("invalid subscription")

	// ErrKeyMissing is returned by Run when a message has no key.
	ErrKeyMissing = errors.New("message has no key")
)

// kindError attaches one of the sentinel errors above to a more
// detailed error.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string        { return e.kind.Error() + ": " + e.err.Error() }
func (e *kindError) Unwrap() error        { return e.err }
func (e *kindError) Is(target error) bool { return target == e.kind }

func configErrorf(format string, args ...interface{}) error {
	return &kindError{kind: ErrConfiguration, err: errors.Errorf(format, args...)}
}

func subscriptionErrorf(format string, args ...interface{}) error {
	return &kindError{kind: ErrSubscription, err: errors.Errorf(format, args...)}
}

// TransportError is an error reported by the Kafka client while
// receiving messages. Fatal errors stop the consumer, the others are
// logged and the consumer carries on.
type TransportError struct {
	Err   error
	Fatal bool
}

func (e *TransportError) Error() string {
	if e.Fatal {
		return "fatal transport error: " + e.Err.Error()
	}
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// KeyDecodeError is returned by Run when the key of a message cannot
// be decoded into a routing key.
type KeyDecodeError struct {
	Key []byte
	Err error
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("cannot decode message key %q: %v", e.Key, e.Err)
}

func (e *KeyDecodeError) Unwrap() error { return e.Err }

// classify turns an error returned by a Source into a TransportError.
func classify(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Err: err, Fatal: isFatal(err)}
}

// isFatal reports whether err can never go away by itself: bad
// configuration, closed client or group, refused authorization or an
// invalid subscription.
func isFatal(err error) bool {
	var cfgErr sarama.ConfigurationError
	if errors.As(err, &cfgErr) {
		return true
	}
	if errors.Is(err, sarama.ErrClosedConsumerGroup) ||
		errors.Is(err, sarama.ErrClosedClient) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrSubscription) {
		return true
	}

	var kerr sarama.KError
	if errors.As(err, &kerr) {
		switch kerr {
		case sarama.ErrTopicAuthorizationFailed,
			sarama.ErrGroupAuthorizationFailed,
			sarama.ErrClusterAuthorizationFailed,
			sarama.ErrSASLAuthenticationFailed,
			sarama.ErrInvalidGroupId,
			sarama.ErrInvalidTopic:
			return true
		}
	}
	return false
}
