package handler

import "context"

// Handler is the interface for handling consumed messages. key is the
// decoded routing key and payload the raw message value, nil when the
// message has no value. Returning an error leaves the message
// uncommitted.
type Handler interface {
	Process(ctx context.Context, key string, payload []byte) error
}

// A HandlerFunc is a function type that mimics the interface of the
// Process method of the Handler interface. If you cast a function to
// this type, it will comply with the Handler interface.
type HandlerFunc func(ctx context.Context, key string, payload []byte) error

// Process calls h.
func (h HandlerFunc) Process(ctx context.Context, key string, payload []byte) error {
	return h(ctx, key, payload)
}

// StateHandler is a Handler that also receives the state shared by
// every handler of a service. The state is never modified by kroute.
type StateHandler[S any] interface {
	Process(ctx context.Context, key string, payload []byte, state *S) error
}

// StateHandlerFunc is the function adapter of StateHandler.
type StateHandlerFunc[S any] func(ctx context.Context, key string, payload []byte, state *S) error

// Process calls h.
func (h StateHandlerFunc[S]) Process(ctx context.Context, key string, payload []byte, state *S) error {
	return h(ctx, key, payload, state)
}

// Bind returns a Handler that calls h with state. It returns nil when
// h is nil.
func Bind[S any](h StateHandler[S], state *S) Handler {
	if h == nil {
		return nil
	}
	return &bound[S]{h: h, state: state}
}

type bound[S any] struct {
	h     StateHandler[S]
	state *S
}

func (b *bound[S]) Process(ctx context.Context, key string, payload []byte) error {
	return b.h.Process(ctx, key, payload, b.state)
}
