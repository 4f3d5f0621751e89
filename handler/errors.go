package handler

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPayloadMissing is returned when a message that requires a
	// payload has none.
	ErrPayloadMissing = errors.New("payload is missing")

	// ErrKeyNotRegistered is matched by KeyNotRegisteredError.
	ErrKeyNotRegistered = errors.New("key not registered")

	// ErrDeserialize is matched by DeserializeError.
	ErrDeserialize = errors.New("cannot deserialize payload")
)

// KeyNotRegisteredError is returned when no handler is registered for
// the routing key of a message.
type KeyNotRegisteredError struct {
	Key string
}

func (e *KeyNotRegisteredError) Error() string {
	return fmt.Sprintf("no handler registered for key %q", e.Key)
}

// Is reports whether target is ErrKeyNotRegistered.
func (e *KeyNotRegisteredError) Is(target error) bool {
	return target == ErrKeyNotRegistered
}

// DeserializeError is returned when a payload cannot be decoded into
// the type expected by a handler.
type DeserializeError struct {
	Err error
}

func (e *DeserializeError) Error() string {
	return "cannot deserialize payload: " + e.Err.Error()
}

func (e *DeserializeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDeserialize.
func (e *DeserializeError) Is(target error) bool {
	return target == ErrDeserialize
}
