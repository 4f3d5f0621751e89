// Package handler defines how a consumed message is handled.
//
// A consumer calls exactly one Handler per message, with the routing
// key decoded from the message key and the raw payload. There are two
// common ways to comply with the Handler interface. The first is to
// create a type with a Process method:
//
//	type OrderHandler struct{}
//
//	func (OrderHandler) Process(ctx context.Context, key string, payload []byte) error {
//		...
//	}
//
// The second is to convert a function to the HandlerFunc type:
//
//	h := handler.HandlerFunc(func(ctx context.Context, key string, payload []byte) error {
//		...
//	})
//
// Handlers that need access to shared application state implement
// StateHandler instead and are turned into a Handler with Bind.
//
// Routing on the key is done by the handler itself. Keys is a
// convenient way to do it with a map literal:
//
//	h := handler.Keys{
//		"order-created":   handler.HandlerFunc(created),
//		"order-cancelled": handler.HandlerFunc(cancelled),
//	}
//
// Any error returned by a handler prevents the message from being
// committed. The errors defined in this package let the consumer
// report why.
package handler
