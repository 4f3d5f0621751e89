package handler

import "context"

// Keys dispatches each message to the Handler registered for its
// routing key. It is meant to be built once, as a map literal, and
// never modified afterwards.
type Keys map[string]Handler

// Process calls the handler registered for key, or returns a
// *KeyNotRegisteredError.
func (k Keys) Process(ctx context.Context, key string, payload []byte) error {
	h, ok := k[key]
	if !ok {
		return &KeyNotRegisteredError{Key: key}
	}
	return h.Process(ctx, key, payload)
}

// StateKeys is the StateHandler counterpart of Keys.
type StateKeys[S any] map[string]StateHandler[S]

// Process calls the handler registered for key, or returns a
// *KeyNotRegisteredError.
func (k StateKeys[S]) Process(ctx context.Context, key string, payload []byte, state *S) error {
	h, ok := k[key]
	if !ok {
		return &KeyNotRegisteredError{Key: key}
	}
	return h.Process(ctx, key, payload, state)
}
